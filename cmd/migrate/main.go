package main

import (
	"flag"
	"log"
	"sessiongate/internal/config"
	"sessiongate/internal/database"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	if err := database.RunMigrations(cfg.DB.Source, *direction); err != nil {
		log.Fatalf("migrate %s: %v", *direction, err)
	}
	log.Printf("migrations %s applied", *direction)
}
