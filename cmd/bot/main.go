package main

import (
	"context"
	"log"

	"github.com/dkurilov/counselbot/internal/bot"
	"github.com/dkurilov/counselbot/internal/bot/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	app, err := bot.NewApp(cfg)
	if err != nil {
		log.Fatalf("init error: %v", err)
	}

	app.Run(context.Background())
}
