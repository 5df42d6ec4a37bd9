package banner

import (
	"fmt"

	"github.com/DarthNec/Fonana-sub001/pkg/config"
)

const banner = `
███████╗ ██████╗ ███╗   ██╗ █████╗ ███╗   ██╗ █████╗     ██████╗ ████████╗
██╔════╝██╔═══██╗████╗  ██║██╔══██╗████╗  ██║██╔══██╗    ██╔══██╗╚══██╔══╝
█████╗  ██║   ██║██╔██╗ ██║███████║██╔██╗ ██║███████║    ██████╔╝   ██║
██╔══╝  ██║   ██║██║╚██╗██║██╔══██║██║╚██╗██║██╔══██║    ██╔══██╗   ██║
██║     ╚██████╔╝██║ ╚████║██║  ██║██║ ╚████║██║  ██║    ██║  ██║   ██║
╚═╝      ╚═════╝ ╚═╝  ╚═══╝╚═╝  ╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝    ╚═╝  ╚═╝   ╚═╝
`

// Print writes the startup banner with the effective runtime settings.
func Print(cfg *config.Config, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", cfg.Addr())
	fmt.Printf("DB Path:  %s\n", cfg.Server.DBPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET /ws?token=<jwt> - Realtime websocket (subscribe/unsubscribe/ping frames)")
	fmt.Println("GET /healthz        - Liveness probe")
	fmt.Println("GET /readyz         - Readiness probe")
	fmt.Println("GET /metrics        - Prometheus metrics")

	fmt.Println("\n== Production? =================================================")
	if cfg.Auth.Secret != "" {
		fmt.Println("- Auth secret: configured")
	} else {
		fmt.Println("- Auth secret: MISSING (set auth.secret or FONANA_JWT_SECRET)")
	}
	if cfg.Server.TLS.CertFile != "" && cfg.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured (terminate TLS upstream or set server.tls)")
	}
	if cfg.Bus.Addr != "" {
		fmt.Printf("- Bus: redis at %s (multi-instance fanout)\n", cfg.Bus.Addr)
	} else {
		fmt.Println("- Bus: disabled (single-instance delivery only)")
	}
	if cfg.Retention.Enabled {
		fmt.Printf("- Retention: enabled (cron=%s period=%s)\n", cfg.Retention.Cron, cfg.Retention.Period)
	} else {
		fmt.Println("- Retention: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
