// Package config loads the process configuration from YAML with
// validated defaults.
package config

import (
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
)

const (
	EngineMemory = "memory"
	EngineBadger = "badger"
)

type Config struct {
	// Engine selects the triple source backend.
	Engine string `yaml:"engine"`
	// TypePredicate overrides the predicate used for the class index;
	// empty means rdf:type.
	TypePredicate string `yaml:"type_predicate"`
	// Listen is the HTTP server address.
	Listen string `yaml:"listen"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Engine:   EngineMemory,
		Listen:   ":7035",
		LogLevel: "info",
	}
}

// Load reads a config file and validates it. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, graperr.Wrap(graperr.CodeConfigReadFailure, err, "reading config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, graperr.Wrap(graperr.CodeConfigParseInvalid, err, "parsing config file")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Engine {
	case EngineMemory, EngineBadger:
	default:
		return graperr.Errorf(graperr.CodeConfigInvalidValue,
			"engine must be %q or %q, got %q", EngineMemory, EngineBadger, c.Engine)
	}
	if c.TypePredicate != "" {
		if _, err := rdf.NewIRI(c.TypePredicate); err != nil {
			return graperr.Wrap(graperr.CodeConfigInvalidValue, err, "type_predicate is not a valid IRI")
		}
	}
	if c.Listen == "" {
		return graperr.E(graperr.CodeConfigInvalidValue, "listen address must not be empty")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// TypePredicateIRI returns the configured type predicate, or nil for
// the rdf:type default.
func (c Config) TypePredicateIRI() *rdf.IRI {
	if c.TypePredicate == "" {
		return nil
	}
	iri, err := rdf.NewIRI(c.TypePredicate)
	if err != nil {
		return nil
	}
	return iri
}

func (c Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, graperr.Errorf(graperr.CodeConfigInvalidValue,
			"log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
}
