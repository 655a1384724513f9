package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var (
		modules []string
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "generate [path]",
		Short: "Generate artifacts for every module under path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := rootPath(args)
			cfg, err := opts.loadConfig(root)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			p, err := opts.newPipeline(cfg, modules)
			if err != nil {
				return err
			}
			p.DryRun = dryRun

			report, err := p.Run(cmd.Context(), root)
			if report != nil {
				printReport(cmd.OutOrStdout(), report, !dryRun)
			}
			if err != nil {
				return err
			}
			if report.HasErrors() {
				return errFindings
			}
			return nil
		},
	}
	addModuleFlag(cmd.Flags(), &modules)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "generate in memory without writing files")
	return cmd
}
