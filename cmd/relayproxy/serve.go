// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nostrwrap/relayproxy/config"
	"github.com/nostrwrap/relayproxy/crypto"
	"github.com/nostrwrap/relayproxy/httpclient"
	"github.com/nostrwrap/relayproxy/internal/logger"
	"github.com/nostrwrap/relayproxy/internal/metrics"
	"github.com/nostrwrap/relayproxy/nprofile"
	"github.com/nostrwrap/relayproxy/pipeline"
	"github.com/nostrwrap/relayproxy/relaypool"
	"github.com/nostrwrap/relayproxy/routegate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay proxy daemon",
	Long: `Load configuration, connect to the configured relays, and run the
proxy's decrypt/validate/dispatch/publish pipeline until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: env})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := buildLogger(cfg.Logging)

	identity, err := crypto.ParseSecretHex(cfg.SecretKey)
	if err != nil {
		return fmt.Errorf("parse secret key: %w (run \"relayproxy keygen\" to create one)", err)
	}

	pool := relaypool.New(cfg.Relays)
	gate, err := routegate.New(cfg.AllowedRoutes)
	if err != nil {
		return fmt.Errorf("compile allowed routes: %w", err)
	}
	client := httpclient.New(cfg.Destination, cfg.Timeout)

	p := pipeline.New(identity, pool, gate, client, nil, log)

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Info("starting metrics server", logger.String("addr", addr))
			if err := metrics.StartServer(addr); err != nil {
				log.Error("metrics server stopped", logger.Error(err))
			}
		}()
	}

	var safeRelays []string
	for _, relay := range pool.SafeRelays(len(cfg.Relays)) {
		if nprofile.IsSafeRelay(relay) && len(safeRelays) < cfg.NprofileMaxRelays {
			safeRelays = append(safeRelays, relay)
		}
	}
	if hint, err := nprofile.Encode(identity.Public(), safeRelays); err == nil {
		log.Info("proxy identity", logger.String("nprofile", hint), logger.String("pubkey", identity.PublicHex()))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("relay proxy starting",
		logger.String("environment", cfg.Environment),
		logger.String("destination", cfg.Destination),
		logger.Int("relays", len(cfg.Relays)),
	)

	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("pipeline stopped: %w", err)
	}
	return nil
}

// buildLogger constructs the structured logger the whole pipeline shares,
// from the loaded LoggingConfig: level, pretty-vs-json formatting, and
// stdout-vs-file output.
func buildLogger(cfg *config.LoggingConfig) logger.Logger {
	var out io.Writer = os.Stdout
	if cfg != nil && cfg.Output == "file" && cfg.FilePath != "" {
		if f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			out = f
		}
	}

	level := logger.InfoLevel
	if cfg != nil {
		switch strings.ToUpper(cfg.Level) {
		case "DEBUG":
			level = logger.DebugLevel
		case "WARN":
			level = logger.WarnLevel
		case "ERROR":
			level = logger.ErrorLevel
		}
	}

	l := logger.NewLogger(out, level)
	if cfg != nil && cfg.Format == "pretty" {
		l.SetPrettyPrint(true)
	}
	return l
}
