package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [data.nt ...]",
	Short: "Load N-Triples files and print dataset statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		out := cmd.OutOrStdout()
		stats := b.stats()
		if stats == nil {
			fmt.Fprintf(out, "triples: %d\n", b.source.Len())
			return nil
		}
		fmt.Fprintf(out, "triples:    %d\n", stats.TotalTriples)
		fmt.Fprintf(out, "subjects:   %d\n", stats.UniqueSubjects)
		fmt.Fprintf(out, "predicates: %d\n", stats.UniquePredicates)
		fmt.Fprintf(out, "objects:    %d\n", stats.UniqueObjects)
		if len(stats.TopPredicates) > 0 {
			fmt.Fprintln(out, "top predicates:")
			for _, p := range stats.TopPredicates {
				fmt.Fprintf(out, "  %s  %d\n", p.Predicate, p.Count)
			}
		}
		return nil
	},
}
