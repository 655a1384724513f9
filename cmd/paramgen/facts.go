package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/paramgen/internal/facts"
	"github.com/robert-at-pretension-io/paramgen/internal/validator"
)

type factsOptions struct {
	output    string
	deltaFrom string
	deltaOut  string
	modules   []string
}

func newFactsCmd(opts *rootOptions) *cobra.Command {
	fo := &factsOptions{}
	cmd := &cobra.Command{
		Use:   "facts [path]",
		Short: "Export the run as relational fact tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (fo.deltaFrom == "") != (fo.deltaOut == "") {
				return fmt.Errorf("--delta-from and --delta-out must be used together")
			}

			root := rootPath(args)
			cfg, err := opts.loadConfig(root)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			p, err := opts.newPipeline(cfg, fo.modules)
			if err != nil {
				return err
			}
			p.DryRun = true

			report, err := p.Run(cmd.Context(), root)
			if err != nil {
				return err
			}
			tables := facts.BuildTables(report.Facts())

			v, err := validator.NewFactsValidator()
			if err != nil {
				return fmt.Errorf("loading facts contract: %w", err)
			}
			if err := v.Validate(tables); err != nil {
				return fmt.Errorf("fact tables violate their contract: %w", err)
			}

			if fo.output != "" {
				if err := writeJSON(fo.output, tables); err != nil {
					return fmt.Errorf("writing facts: %w", err)
				}
			} else if err := encodeJSON(cmd.OutOrStdout(), tables); err != nil {
				return fmt.Errorf("encoding facts: %w", err)
			}

			if fo.deltaFrom != "" {
				prev, err := readTables(fo.deltaFrom)
				if err != nil {
					return fmt.Errorf("reading delta-from: %w", err)
				}
				delta := facts.ComputeDelta(prev, tables)
				if len(fo.modules) > 0 {
					keep := make(map[string]bool, len(fo.modules))
					for _, m := range fo.modules {
						keep[m] = true
					}
					delta = facts.FilterDeltaByModules(delta, keep)
				}
				if err := writeJSON(fo.deltaOut, delta); err != nil {
					return fmt.Errorf("writing delta: %w", err)
				}
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&fo.output, "output", "o", "", "write facts JSON to file (default: stdout)")
	flags.StringVar(&fo.deltaFrom, "delta-from", "", "previous facts JSON to compute delta from")
	flags.StringVar(&fo.deltaOut, "delta-out", "", "write delta JSON to file (requires --delta-from)")
	addModuleFlag(flags, &fo.modules)
	return cmd
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeJSON(f, data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func encodeJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
