package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/paramgen/internal/pipeline"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var modules []string
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Report generated files that are missing or out of date",
		Long: `check regenerates every artifact in memory and compares it with the file
already on disk. Differences are printed as unified diffs and the command
exits non-zero, so it can guard generated sources in CI.`,
		Args: cobra.MaximumNArgs(1),
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
			p.DryRun = true

			report, err := p.Run(cmd.Context(), root)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			stale, err := checkReport(out, report)
			if err != nil {
				return err
			}
			if stale > 0 {
				fmt.Fprintf(out, "%s %d generated file(s) out of date\n", red("FAIL"), stale)
				return errFindings
			}
			if report.HasErrors() {
				for _, d := range report.Diagnostics().Fatal() {
					printDiagnostic(out, d)
				}
				return errFindings
			}
			fmt.Fprintln(out, green("OK"), "generated files are up to date")
			return nil
		},
	}
	addModuleFlag(cmd.Flags(), &modules)
	return cmd
}

// checkReport prints a diff for every artifact that differs from its file
// and returns how many did
func checkReport(w io.Writer, report *pipeline.Report) (int, error) {
	stale := 0
	for _, o := range report.Outcomes {
		for _, a := range o.Artifacts {
			path := report.ArtifactPath(o, a)
			onDisk, err := os.ReadFile(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				fmt.Fprintf(w, "%s %s\n", yellow("missing"), path)
				stale++
				continue
			case err != nil:
				return stale, fmt.Errorf("reading %s: %w", path, err)
			}

			diff, err := unifiedDiff(path, string(onDisk), string(a.Content))
			if err != nil {
				return stale, err
			}
			if diff != "" {
				fmt.Fprint(w, diff)
				stale++
			}
		}
	}
	return stale, nil
}

// unifiedDiff returns "" when both texts are equal
func unifiedDiff(path, onDisk, generated string) (string, error) {
	if onDisk == generated {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(onDisk),
		B:        difflib.SplitLines(generated),
		FromFile: path,
		ToFile:   path + " (generated)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diffing %s: %w", path, err)
	}
	return text, nil
}
