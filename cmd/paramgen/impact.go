package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/paramgen/internal/config"
	"github.com/robert-at-pretension-io/paramgen/internal/pipeline"
)

func newImpactCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "impact <module> [path]",
		Short: "List the modules that inherit from a module, level by level",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			root := rootPath(args[1:])
			cfg, err := opts.loadConfig(root)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			mods, err := cfg.ResolveModules(root)
			if err != nil {
				return fmt.Errorf("resolve modules: %w", err)
			}
			if _, ok := config.FindModule(mods, name); !ok {
				return fmt.Errorf("unknown module %q", name)
			}
			fmt.Fprint(cmd.OutOrStdout(), pipeline.FormatImpact(name, mods))
			return nil
		},
	}
}
