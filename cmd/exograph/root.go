package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kitelev/exocortex-graph/internal/config"
	"github.com/kitelev/exocortex-graph/internal/kv"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
	"github.com/kitelev/exocortex-graph/pkg/store"
)

var (
	configPath string
	logLevel   string
	engineName string
)

var rootCmd = &cobra.Command{
	Use:           "exograph",
	Short:         "In-memory RDF triple store with a SPARQL query engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&engineName, "engine", "", "backend: memory or badger")

	rootCmd.AddCommand(queryCmd, serveCmd, statsCmd, versionCmd)
}

// loadConfig merges the config file with command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if engineName != "" {
		cfg.Engine = engineName
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// backend bundles a triple source with its loader and teardown.
type backend struct {
	source store.Source
	add    func(*rdf.Triple) error
	close  func() error
	stats  func() *store.Statistics
}

func openBackend(cfg config.Config, logger *slog.Logger) (*backend, error) {
	if cfg.Engine == config.EngineBadger {
		engine, err := kv.Open()
		if err != nil {
			return nil, err
		}
		return &backend{
			source: engine,
			add:    engine.Insert,
			close:  engine.Close,
			stats:  func() *store.Statistics { return nil },
		}, nil
	}

	s := store.New(store.Config{
		TypePredicate: cfg.TypePredicateIRI(),
		Logger:        logger,
	})
	return &backend{
		source: s,
		add: func(t *rdf.Triple) error {
			s.Add(t)
			return nil
		},
		close: func() error { return nil },
		stats: func() *store.Statistics {
			st := s.Statistics()
			return &st
		},
	}, nil
}

// loadFiles reads N-Triples files into the backend.
func loadFiles(b *backend, logger *slog.Logger, paths []string) error {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		triples, err := rdf.ReadNTriples(f)
		f.Close()
		if err != nil {
			return err
		}
		for _, t := range triples {
			if err := b.add(t); err != nil {
				return err
			}
		}
		logger.Info("loaded file", "path", path, "triples", len(triples))
	}
	return nil
}
