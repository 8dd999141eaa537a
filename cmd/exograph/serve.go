package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/kitelev/exocortex-graph/internal/server"
	"github.com/kitelev/exocortex-graph/pkg/sparql"
	"github.com/kitelev/exocortex-graph/pkg/store"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [data.nt ...]",
	Short: "Load N-Triples files and serve a SPARQL HTTP endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.Listen = listenAddr
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		b, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer b.close()
		if err := loadFiles(b, logger, args); err != nil {
			return err
		}

		engine := sparql.NewEngine(b.source, sparql.Config{Logger: logger})
		var stats server.StatsProvider
		if s, ok := b.source.(*store.Store); ok {
			stats = s
		}
		srv := server.New(engine, stats, logger)

		logger.Info("listening", "addr", cfg.Listen, "engine", cfg.Engine, "triples", b.source.Len())
		return http.ListenAndServe(cfg.Listen, srv)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address (overrides config)")
}
