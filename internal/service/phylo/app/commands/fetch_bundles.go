package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/Cleo-Systems/tbphylo/internal/service/genome"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/fhir"
	fhirmodel "github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/fhir/model"
	"go.uber.org/zap"
)

const noDataFileName = "fhir_no_data.json"

// FHIR resource ids: [A-Za-z0-9\-\.]{1,64}
var fhirID = regexp.MustCompile(`^[A-Za-z0-9\-.]{1,64}$`)

type FetchBundlesCommand struct {
	ServerURL   string
	Credentials fhir.Credentials
	Since       string
	OutputDir   string
}

type FetchBundlesResult struct {
	Bundles []string
	// NoData is set instead of Bundles when the server had no variant data.
	NoData string
}

type FetchBundlesHandler interface {
	Handle(ctx context.Context, cmd FetchBundlesCommand) (result FetchBundlesResult, err error)
}

// httpClient may be nil.
func NewFetchBundlesHandler(httpClient *http.Client, logger *zap.Logger) FetchBundlesHandler {
	return &fetchBundlesCmdHandler{
		httpClient: httpClient,
		logger:     logger,
	}
}

type fetchBundlesCmdHandler struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func (h *fetchBundlesCmdHandler) Handle(ctx context.Context, cmd FetchBundlesCommand) (FetchBundlesResult, error) {
	if cmd.ServerURL == "" {
		return FetchBundlesResult{}, fmt.Errorf("fetch: no FHIR server url configured")
	}

	client := fhir.NewClient(cmd.ServerURL, cmd.Credentials, h.httpClient, h.logger)
	client.Authenticate(ctx)

	logger := h.logger.With(zap.String("server", cmd.ServerURL))
	logger.Info("searching for patients with genetic variant data", zap.String("since", cmd.Since))

	patients, err := client.VariantPatients(ctx, cmd.Since)
	if err != nil {
		return FetchBundlesResult{}, err
	}
	logger.Info("patients with variant data", zap.Int("count", len(patients)))

	if len(patients) == 0 {
		out := filepath.Join(cmd.OutputDir, noDataFileName)
		if err := writeBundle(out, fhirmodel.NewTransactionBundle(nil)); err != nil {
			return FetchBundlesResult{}, err
		}
		logger.Info("no patients found", zap.String("output", out))
		return FetchBundlesResult{NoData: out}, nil
	}

	var result FetchBundlesResult
	for _, id := range patients {
		if !fhirID.MatchString(id) {
			logger.Warn("skipping patient with invalid id", zap.String("patient", id))
			continue
		}
		bundle, err := client.PatientBundle(ctx, id)
		if err != nil {
			return FetchBundlesResult{}, err
		}
		out := filepath.Join(cmd.OutputDir, id+".fhir.json")
		if err := writeBundle(out, bundle); err != nil {
			return FetchBundlesResult{}, err
		}
		logger.Info("saved patient bundle", zap.String("patient", id), zap.Int("resources", len(bundle.Entry)))
		result.Bundles = append(result.Bundles, out)
	}
	return result, nil
}

func writeBundle(path string, b fhirmodel.Bundle) error {
	err := genome.WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	})
	if err != nil {
		return fmt.Errorf("write bundle %s: %w", path, err)
	}
	return nil
}
