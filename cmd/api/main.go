package main

import (
	"flag"
	"log"

	"github.com/fluxtranslate/flux-relay/internal/config"
	"github.com/fluxtranslate/flux-relay/pkg/relay"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the relay configuration file")
	flag.Parse()

	envFiles := []string{".env.local", ".env.development", ".env"}
	config.LoadEnvFiles(envFiles)

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fiberlog.Fatalf("Failed to load config: %v", err)
	}

	r := relay.New(cfg)

	log.Println("Starting flux-relay server...")
	if err := r.Run(); err != nil {
		fiberlog.Fatalf("Server failed: %v", err)
	}
}
