package main

import (
	"errors"
	"io"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/robert-at-pretension-io/paramgen/internal/config"
	"github.com/robert-at-pretension-io/paramgen/internal/logging"
	"github.com/robert-at-pretension-io/paramgen/internal/pipeline"
)

// errFindings makes the process exit non-zero after the findings were printed
var errFindings = errors.New("findings reported")

type rootOptions struct {
	configPath string
	verbose    bool
	logFormat  string
	noColor    bool

	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{errOut: errOut}
	rootCmd := &cobra.Command{
		Use:   "paramgen",
		Short: "paramgen generates asyn parameter registries from driver sources",
		Long: `paramgen scans driver modules for parameter declarations and regenerates
the registry class, the inline registration class, the JSON UI tree and the
migrated driver source from one parameter list.

Configuration is read from the first of:
  1. ./paramgen.json
  2. ./.paramgen.json
  3. <path>/paramgen.json
  4. <path>/.paramgen.json
  5. ~/.config/paramgen/config.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default: search order above)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&opts.logFormat, "log-format", string(logging.LogFormatText), "log format: text or json")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newInitCmd(),
		newGenerateCmd(opts),
		newCheckCmd(opts),
		newFactsCmd(opts),
		newImpactCmd(opts),
	)
	return rootCmd
}

// rootPath is the project root argument, defaulting to the working directory
func rootPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func (o *rootOptions) loadConfig(root string) (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load(root)
}

func (o *rootOptions) logger() *logrus.Logger {
	log := logging.New(o.verbose, logging.LogFormat(o.logFormat))
	log.SetOutput(o.errOut)
	return log
}

func (o *rootOptions) newPipeline(cfg *config.Config, modules []string) (*pipeline.Pipeline, error) {
	p, err := pipeline.New(cfg, o.logger())
	if err != nil {
		return nil, err
	}
	p.Modules = modules
	return p, nil
}

func addModuleFlag(flags *pflag.FlagSet, modules *[]string) {
	flags.StringSliceVarP(modules, "module", "m", nil, "only process these modules (and their bases)")
}
