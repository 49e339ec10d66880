package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/relayctl/internal/logging"
	"github.com/danmuck/relayctl/internal/observability"
	"github.com/danmuck/relayctl/internal/relay"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to relayctl config.toml (defaults apply when empty)")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("relayctl")

	cfg := relay.DefaultServiceConfig()
	if configPath != "" {
		loaded, err := loadServiceConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc := relay.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
		os.Exit(1)
	}
}
