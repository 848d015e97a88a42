package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/fhir"
	fhirmodel "github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/fhir/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fhirServer(t *testing.T, patients ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/Observation", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var entries []map[string]any
		if r.URL.Query().Get("code") == "69548-6" {
			for _, p := range patients {
				entries = append(entries, map[string]any{"resource": map[string]any{
					"resourceType": "Observation",
					"subject":      map[string]string{"reference": "Patient/" + p},
				}})
			}
		} else {
			entries = append(entries, map[string]any{"resource": map[string]any{
				"resourceType": "Observation",
				"code":         map[string]any{"coding": []map[string]string{{"code": "69548-6"}}},
				"valueCodeableConcept": map[string]any{
					"coding": []map[string]string{{"code": "NC_000962.3:g.3G>A"}},
				},
			}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"resourceType": "Bundle", "entry": entries})
	})
	mux.HandleFunc("/Patient/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"resourceType": "Patient", "id": filepath.Base(r.URL.Path)})
	})
	mux.HandleFunc("/DiagnosticReport", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"resourceType": "Bundle", "entry": []any{}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchBundles(t *testing.T) {
	srv := fhirServer(t, "P2", "P1", "bad/id")
	out := t.TempDir()

	h := NewFetchBundlesHandler(srv.Client(), zap.NewNop())
	res, err := h.Handle(context.Background(), FetchBundlesCommand{
		ServerURL:   srv.URL,
		Credentials: fhir.Credentials{APIKey: "k"},
		OutputDir:   out,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(out, "P1.fhir.json"), filepath.Join(out, "P2.fhir.json")}, res.Bundles)
	assert.Empty(t, res.NoData)

	var b fhirmodel.Bundle
	require.NoError(t, json.Unmarshal([]byte(readFile(t, res.Bundles[0])), &b))
	assert.Equal(t, "transaction", b.Type)
	assert.Len(t, b.Entry, 2)

	sample, err := fhir.LoadSample(res.Bundles[0])
	require.NoError(t, err)
	assert.Equal(t, "A", sample.Variants[3])
}

func TestFetchBundlesNoPatients(t *testing.T) {
	srv := fhirServer(t)
	out := t.TempDir()

	h := NewFetchBundlesHandler(srv.Client(), zap.NewNop())
	res, err := h.Handle(context.Background(), FetchBundlesCommand{
		ServerURL:   srv.URL,
		Credentials: fhir.Credentials{APIKey: "k"},
		OutputDir:   out,
	})
	require.NoError(t, err)

	assert.Empty(t, res.Bundles)
	assert.Equal(t, filepath.Join(out, "fhir_no_data.json"), res.NoData)
	assert.JSONEq(t, `{"resourceType":"Bundle","type":"transaction","entry":[]}`, readFile(t, res.NoData))
}

func TestFetchBundlesAuthFailure(t *testing.T) {
	srv := fhirServer(t, "P1")

	h := NewFetchBundlesHandler(srv.Client(), zap.NewNop())
	_, err := h.Handle(context.Background(), FetchBundlesCommand{
		ServerURL: srv.URL,
		OutputDir: t.TempDir(),
	})
	assert.Error(t, err)
}

func TestFetchBundlesRequiresServer(t *testing.T) {
	h := NewFetchBundlesHandler(nil, zap.NewNop())
	_, err := h.Handle(context.Background(), FetchBundlesCommand{OutputDir: t.TempDir()})
	assert.Error(t, err)
}
