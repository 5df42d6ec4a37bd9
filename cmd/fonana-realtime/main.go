package main

import (
	"context"
	"log"
	"net"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/DarthNec/Fonana-sub001/internal/app"
	"github.com/DarthNec/Fonana-sub001/pkg/config"
	"github.com/DarthNec/Fonana-sub001/pkg/logger"
	"github.com/DarthNec/Fonana-sub001/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, _, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Explicit flags win over env/config.
	if setFlags["addr"] {
		host, portStr, err := net.SplitHostPort(addrVal)
		if err != nil {
			log.Fatalf("invalid -addr %q: %v", addrVal, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Fatalf("invalid -addr port %q: %v", portStr, err)
		}
		cfg.Server.Address = host
		cfg.Server.Port = port
	}
	if setFlags["db"] {
		cfg.Server.DBPath = dbVal
	}

	logger.InitWithLevel(cfg.Logging.Level)

	a, err := app.New(cfg, app.Options{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})
	if err != nil {
		shutdown.Abort("startup failed", err, cfg.Server.DBPath)
	}

	ctx, stop := shutdown.SetupSignalHandler(context.Background())
	defer stop()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server error", err, cfg.Server.DBPath)
	}
}
