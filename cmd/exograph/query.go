package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kitelev/exocortex-graph/internal/sparql/parser"
	"github.com/kitelev/exocortex-graph/pkg/sparql"
)

var (
	queryText string
	queryFile string
)

var queryCmd = &cobra.Command{
	Use:   "query [data.nt ...]",
	Short: "Load N-Triples files and run a SPARQL query",
	RunE: func(cmd *cobra.Command, args []string) error {
		text := queryText
		if queryFile != "" {
			data, err := os.ReadFile(queryFile)
			if err != nil {
				return err
			}
			text = string(data)
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("no query given: use --query or --query-file")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
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
		result, err := engine.Execute(cmd.Context(), text)
		if err != nil {
			return err
		}
		printResult(cmd, result)
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "SPARQL query text")
	queryCmd.Flags().StringVar(&queryFile, "query-file", "", "read the query from a file")
}

func printResult(cmd *cobra.Command, result *sparql.Result) {
	out := cmd.OutOrStdout()
	switch result.Form {
	case parser.FormAsk:
		fmt.Fprintln(out, result.Boolean)

	case parser.FormConstruct:
		for _, t := range result.Triples {
			fmt.Fprintln(out, t.String())
		}

	default:
		w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(result.Variables, "\t"))
		for _, row := range result.Rows {
			cells := make([]string, 0, len(result.Variables))
			for _, name := range result.Variables {
				if term, ok := row.Get(name); ok {
					cells = append(cells, term.String())
				} else {
					cells = append(cells, "")
				}
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		w.Flush()
		fmt.Fprintf(out, "%d result(s)\n", len(result.Rows))
	}
}
