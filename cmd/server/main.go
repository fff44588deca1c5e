package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/obsync-io/obsync/internal/server"
	"github.com/obsync-io/obsync/internal/server/config"
)

func main() {

	// Optional .env for local runs; deployments set the real environment.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
