package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort string `yaml:"port" env:"PORT"`
	APIKey   string `yaml:"api_key" env:"API_KEY"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	InputDir   string   `yaml:"input_dir" env:"INPUT_DIR"`
	Reference  string   `yaml:"reference" env:"REFERENCE"`
	ResultsDir string   `yaml:"results_dir" env:"RESULTS_DIR"`
	RunsDB     string   `yaml:"runs_db" env:"RUNS_DB"`
	Anchors    []string `yaml:"anchors"`

	Workers      int `yaml:"workers" env:"WORKERS"`
	SNPThreshold int `yaml:"snp_threshold" env:"SNP_THRESHOLD"`

	FHIR  FHIRConfig  `yaml:"fhir"`
	Augur AugurConfig `yaml:"augur"`
}

type FHIRConfig struct {
	ServerURL    string `yaml:"server_url" env:"FHIR_SERVER_URL"`
	APIKey       string `yaml:"api_key" env:"FHIR_API_KEY"`
	TokenURL     string `yaml:"oauth_token_url" env:"FHIR_OAUTH_TOKEN_URL"`
	ClientID     string `yaml:"client_id" env:"FHIR_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"FHIR_CLIENT_SECRET"`
	Scope        string `yaml:"scope" env:"FHIR_SCOPE"`
	Since        string `yaml:"since" env:"FHIR_FETCH_SINCE"`
}

type AugurConfig struct {
	Enabled        bool   `yaml:"enabled" env:"AUGUR_ENABLED"`
	Binary         string `yaml:"binary" env:"AUGUR_BINARY"`
	TreeMethod     string `yaml:"tree_method" env:"AUGUR_TREE_METHOD"`
	EnableTimetree bool   `yaml:"enable_timetree" env:"AUGUR_ENABLE_TIMETREE"`
}

func Default() Config {
	return Config{
		HTTPPort:     "8080",
		LogLevel:     "info",
		InputDir:     "JSON",
		Reference:    filepath.Join("reference", "H37Rv.fasta"),
		ResultsDir:   "results",
		Workers:      runtime.NumCPU(),
		SNPThreshold: 12,
		FHIR: FHIRConfig{
			Scope: "openid",
		},
		Augur: AugurConfig{
			Binary:     "augur",
			TreeMethod: "iqtree",
		},
	}
}

// NewConfigFromEnv layers an optional YAML file and then the environment
// over the defaults. path may be empty.
func NewConfigFromEnv(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, nil); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, environ map[string]string) error {
	// a nil environ reads the process environment
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.SNPThreshold < 0 {
		errs = append(errs, fmt.Errorf("snp_threshold must not be negative, got %d", c.SNPThreshold))
	}
	if c.FHIR.Since != "" && !isDate(c.FHIR.Since) {
		errs = append(errs, fmt.Errorf("fhir since must be YYYY-MM-DD, got %q", c.FHIR.Since))
	}
	switch c.Augur.TreeMethod {
	case "iqtree", "raxml", "fasttree":
	default:
		errs = append(errs, fmt.Errorf("unknown augur tree method %q", c.Augur.TreeMethod))
	}
	return errors.Join(errs...)
}

func isDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

// RunsDBPath defaults the run store into the results directory.
func (c Config) RunsDBPath() string {
	if c.RunsDB != "" {
		return c.RunsDB
	}
	return filepath.Join(c.ResultsDir, "runs.db")
}

func (c Config) ConsensusDir() string { return filepath.Join(c.ResultsDir, "consensus") }
func (c Config) FetchDir() string     { return filepath.Join(c.ResultsDir, "fhir") }
func (c Config) PhyloDir() string     { return filepath.Join(c.ResultsDir, "phylo") }
