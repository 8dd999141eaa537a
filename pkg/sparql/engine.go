// Package sparql is the query engine facade: parse, translate,
// optimize and execute in one call.
package sparql

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kitelev/exocortex-graph/internal/sparql/algebra"
	"github.com/kitelev/exocortex-graph/internal/sparql/executor"
	"github.com/kitelev/exocortex-graph/internal/sparql/optimizer"
	"github.com/kitelev/exocortex-graph/internal/sparql/parser"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
	"github.com/kitelev/exocortex-graph/pkg/store"
)

// Engine runs SPARQL queries against a triple source. It is safe for
// concurrent read-only use; interleaving queries with mutation is the
// caller's responsibility.
type Engine struct {
	source store.Source
	opt    *optimizer.Optimizer
	logger *slog.Logger
}

type Config struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func NewEngine(source store.Source, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		source: source,
		opt:    optimizer.New(source),
		logger: logger,
	}
}

// Result holds the outcome of one query; exactly one of Rows, Triples
// or Boolean is meaningful, discriminated by Form.
type Result struct {
	Form      parser.QueryForm
	Variables []string
	Rows      []*store.Binding
	Triples   []*rdf.Triple
	Boolean   bool
}

// Execute parses and runs one query.
func (e *Engine) Execute(ctx context.Context, text string) (*Result, error) {
	started := time.Now()

	q, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}
	node, err := algebra.Translate(q)
	if err != nil {
		return nil, err
	}
	node = e.opt.Optimize(node)
	exec := executor.New(e.source)

	result := &Result{Form: q.Form}
	switch q.Form {
	case parser.FormSelect:
		result.Variables = selectVariables(q.Select, node)
		result.Rows, err = exec.Execute(ctx, node)
	case parser.FormAsk:
		result.Boolean, err = exec.Ask(ctx, node)
	case parser.FormConstruct:
		result.Triples, err = exec.Construct(ctx, node, q.Construct.Template)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug("query executed",
		"form", int(q.Form),
		"rows", len(result.Rows),
		"triples", len(result.Triples),
		"duration", time.Since(started))
	return result, nil
}

// ExecuteAll runs several read-only queries concurrently and returns
// their results in input order. The first failure cancels the rest.
func (e *Engine) ExecuteAll(ctx context.Context, queries []string) ([]*Result, error) {
	results := make([]*Result, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	for i, text := range queries {
		i, text := i, text
		g.Go(func() error {
			r, err := e.Execute(ctx, text)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func selectVariables(sel *parser.SelectQuery, node algebra.Node) []string {
	if sel.Items == nil {
		return algebra.SortedVariables(node)
	}
	out := make([]string, 0, len(sel.Items))
	for _, item := range sel.Items {
		if item.Alias != nil {
			out = append(out, item.Alias.Name)
			continue
		}
		out = append(out, item.Variable.Name)
	}
	return out
}
