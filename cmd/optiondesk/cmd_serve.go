package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpiface "github.com/sawpanic/optiondesk/internal/interfaces/http"
)

var flagListenAddr string

// serveCmd runs the cycle loop continuously and serves the status and
// metrics endpoints.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cycle loop with the status and metrics endpoints",
	Long: `Run evaluation cycles on the configured interval and expose
/health, /status and /metrics over HTTP until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagListenAddr, "listen", ":8093", "Status server listen address")
	addProviderFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, mreg, closeAll, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	server := httpiface.NewServer(flagListenAddr, engine, mreg)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Error().Err(err).Msg("status server stopped")
		}
	}()

	interval := cfg.Engine.CycleInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("cycle loop started")
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			if _, err := engine.RunCycle(ctx); err != nil {
				log.Error().Err(err).Msg("cycle failed")
			}
		}
	}
}
