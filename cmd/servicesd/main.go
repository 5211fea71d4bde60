package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/ebk1996/services/internal/app"
)

func main() {
	// Best-effort .env load; deployments normally set the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment")
	}

	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ servicesd failed to start: %v", err)
	}
}
