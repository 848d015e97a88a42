package main

import (
	"fmt"
	"path/filepath"

	"github.com/Cleo-Systems/tbphylo/internal/service"
	"github.com/Cleo-Systems/tbphylo/internal/service/genome"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/app/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// fhirFlags are shared by fetch and run.
type fhirFlags struct {
	url, auth, tokenURL, clientID, clientSecret, scope, since string
}

func (f *fhirFlags) register(fs *pflag.FlagSet, names [6]string) {
	fs.StringVar(&f.url, names[0], "", "FHIR server base url")
	fs.StringVar(&f.auth, names[1], "", "FHIR API key sent as X-API-Key")
	fs.StringVar(&f.tokenURL, names[2], "", "OAuth2 token endpoint")
	fs.StringVar(&f.clientID, names[3], "", "OAuth2 client id")
	fs.StringVar(&f.clientSecret, names[4], "", "OAuth2 client secret")
	fs.StringVar(&f.scope, names[5], "", "OAuth2 scope (default openid)")
	fs.StringVar(&f.since, "since", "", "only patients whose variant observations were last updated after YYYY-MM-DD")
}

var (
	fetchFlagNames  = [6]string{"url", "auth", "token-url", "client-id", "client-secret", "scope"}
	readmeFlagNames = [6]string{"fhir_server_url", "fhir_server_auth", "fhir_oauth_token_url", "fhir_client_id", "fhir_client_secret", "fhir_scope"}
)

func (c *cli) applyFHIR(fs *pflag.FlagSet, names [6]string, f *fhirFlags) error {
	set := func(name, val string, dst *string) {
		if fs.Changed(name) {
			*dst = val
		}
	}
	set(names[0], f.url, &c.config.FHIR.ServerURL)
	set(names[1], f.auth, &c.config.FHIR.APIKey)
	set(names[2], f.tokenURL, &c.config.FHIR.TokenURL)
	set(names[3], f.clientID, &c.config.FHIR.ClientID)
	set(names[4], f.clientSecret, &c.config.FHIR.ClientSecret)
	set(names[5], f.scope, &c.config.FHIR.Scope)
	set("since", f.since, &c.config.FHIR.Since)
	return c.config.Validate()
}

func newFetchCmd(c *cli) *cobra.Command {
	var (
		flags fhirFlags
		out   string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download one transaction bundle per patient with variant observations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.applyFHIR(cmd.Flags(), fetchFlagNames, &flags); err != nil {
				return err
			}
			svc := service.NewPhyloService(c.config, c.logger)

			fetch := svc.FetchCommand()
			if out != "" {
				fetch.OutputDir = out
			}
			result, err := svc.Commands().FetchBundles(cmd.Context(), fetch)
			if err != nil {
				return err
			}
			if result.NoData != "" {
				c.logger.Warn("no variant data on server", zap.String("file", result.NoData))
				fmt.Fprintln(cmd.OutOrStdout(), result.NoData)
				return nil
			}
			for _, b := range result.Bundles {
				fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			return nil
		},
	}
	flags.register(cmd.Flags(), fetchFlagNames)
	cmd.Flags().StringVar(&out, "out", "", "output directory (default <results>/fhir)")
	return cmd
}

func newConsensusCmd(c *cli) *cobra.Command {
	var input, reference, output string
	cmd := &cobra.Command{
		Use:   "consensus",
		Short: "Apply one bundle's variants to the reference genome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reference == "" {
				reference = c.config.Reference
			}
			if output == "" {
				output = genome.ConsensusPath(c.config.ConsensusDir(), input)
			}

			ref, err := genome.LoadReference(reference)
			if err != nil {
				return err
			}
			if err := commands.BuildConsensusFile(input, ref, output); err != nil {
				return err
			}
			c.logger.Debug("consensus written", zap.String("output", output))
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "FHIR bundle (*.fhir.json)")
	cmd.Flags().StringVar(&reference, "reference", "", "reference FASTA (default from config)")
	cmd.Flags().StringVar(&output, "output", "", "consensus FASTA (default <results>/consensus/<stem>.consensus.fasta)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newPhyloCmd(c *cli) *cobra.Command {
	var (
		inputs, anchors []string
		reference, out  string
		threshold       int
	)
	cmd := &cobra.Command{
		Use:   "phylo [bundle...]",
		Short: "Build metadata, SNP distances, NJ tree and transmission clusters for a cohort",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs = append(inputs, args...)
			if len(inputs) == 0 {
				bundles, err := commands.ListBundles(c.config.InputDir)
				if err != nil {
					return err
				}
				inputs = bundles
			}
			if reference == "" {
				reference = c.config.Reference
			}
			if out == "" {
				out = c.config.PhyloDir()
			}
			if !cmd.Flags().Changed("anchors") {
				anchors = c.config.Anchors
			}
			if !cmd.Flags().Changed("snp-threshold") {
				threshold = c.config.SNPThreshold
			}

			svc := service.NewPhyloService(c.config, c.logger)
			result, err := svc.Commands().BuildPhylo(cmd.Context(), commands.BuildPhyloCommand{
				Inputs:       inputs,
				Anchors:      anchors,
				Reference:    reference,
				OutputDir:    out,
				SNPThreshold: threshold,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "samples=%d sites=%d clusters=%d dir=%s\n",
				result.Samples, result.Sites, result.Clusters, out)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&inputs, "inputs", nil, "FHIR bundles (default all bundles in the input directory)")
	cmd.Flags().StringSliceVar(&anchors, "anchors", nil, "reference-panel bundles placed after the reference")
	cmd.Flags().StringVar(&reference, "reference", "", "reference FASTA (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "output directory (default <results>/phylo)")
	cmd.Flags().IntVar(&threshold, "snp-threshold", genome.DefaultSNPThreshold, "max SNP distance for a transmission link")
	return cmd
}

func newRunCmd(c *cli) *cobra.Command {
	var (
		flags                           fhirFlags
		inputDir, reference, resultsDir string
		anchors                         []string
		workers, threshold              int
		augur                           bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline: fetch (optional), consensus, phylo, augur (optional)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			if fs.Changed("input-dir") {
				c.config.InputDir = inputDir
			}
			if fs.Changed("reference") {
				c.config.Reference = reference
			}
			if fs.Changed("results-dir") {
				c.config.ResultsDir = resultsDir
			}
			if fs.Changed("anchors") {
				c.config.Anchors = anchors
			}
			if fs.Changed("workers") && workers >= 1 {
				c.config.Workers = workers
			}
			if fs.Changed("snp-threshold") {
				c.config.SNPThreshold = threshold
			}
			if fs.Changed("augur") {
				c.config.Augur.Enabled = augur
			}
			if err := c.applyFHIR(fs, readmeFlagNames, &flags); err != nil {
				return err
			}

			svc := service.NewPhyloService(c.config, c.logger)
			result, err := svc.Commands().RunPipeline(cmd.Context(), svc.PipelineCommand())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bundles=%d clusters=%d results=%s\n",
				len(result.Bundles), result.Phylo.Clusters, filepath.Clean(result.ResultsDir))
			return nil
		},
	}
	fs := cmd.Flags()
	flags.register(fs, readmeFlagNames)
	fs.StringVar(&inputDir, "input-dir", "", "directory of local bundles (default JSON)")
	fs.StringVar(&reference, "reference", "", "reference FASTA")
	fs.StringVar(&resultsDir, "results-dir", "", "results directory (default results)")
	fs.StringSliceVar(&anchors, "anchors", nil, "reference-panel bundles")
	fs.IntVar(&workers, "workers", 0, "parallel consensus tasks; values below 1 keep the configured default (NumCPU)")
	fs.IntVar(&threshold, "snp-threshold", genome.DefaultSNPThreshold, "max SNP distance for a transmission link")
	fs.BoolVar(&augur, "augur", false, "run augur tree (and refine with AUGUR_ENABLE_TIMETREE)")
	return cmd
}
