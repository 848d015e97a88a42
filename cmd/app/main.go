package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Cleo-Systems/tbphylo/internal/service/config"
	"github.com/Cleo-Systems/tbphylo/internal/service/genome"
	"github.com/Cleo-Systems/tbphylo/internal/service/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	exitError        = 1
	exitMissingInput = 2
)

// cli holds what PersistentPreRunE resolves for every subcommand.
type cli struct {
	configPath string
	verbose    bool

	config config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "tbphylo",
		Short: "TB genomic surveillance: FHIR variants to consensus genomes and phylogenies",
		Long: `tbphylo turns FHIR bundles of Mycobacterium tuberculosis variant
observations into per-sample consensus genomes, a SNP distance matrix,
a neighbour-joining tree and putative transmission clusters.

Bundles are read from a local directory or fetched from a FHIR server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromEnv(c.configPath)
			if err != nil {
				return err
			}
			c.config = cfg

			c.logger, err = logging.New(cfg.LogLevel, c.verbose)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newFetchCmd(c),
		newConsensusCmd(c),
		newPhyloCmd(c),
		newRunCmd(c),
		newServeCmd(c),
	)
	return root
}

func exitCode(err error) int {
	if errors.Is(err, genome.ErrMissingInput) {
		return exitMissingInput
	}
	return exitError
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tbphylo:", err)
		os.Exit(exitCode(err))
	}
}
