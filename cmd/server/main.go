package main

import (
	"intercept-sandbox/internal/app/server"
	"intercept-sandbox/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel, nil)
	server.Run(cfg)
}
