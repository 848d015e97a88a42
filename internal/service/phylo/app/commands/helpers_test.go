package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testReference = "ACGTACGTACGTACGTACGT"

func writeReference(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "H37Rv.fasta")
	require.NoError(t, os.WriteFile(path, []byte(">NC_000962.3\n"+testReference+"\n"), 0o644))
	return path
}

// writeVariantBundle writes a bundle for patient id with one HGVS-coded
// variant Observation per "pos>alt" entry.
func writeVariantBundle(t *testing.T, dir, id string, variants ...string) string {
	t.Helper()
	entries := []string{fmt.Sprintf(`{"resource":{"resourceType":"Patient","id":%q}}`, id)}
	for _, v := range variants {
		pos, alt, ok := strings.Cut(v, ">")
		require.True(t, ok)
		entries = append(entries, fmt.Sprintf(
			`{"resource":{"resourceType":"Observation","code":{"coding":[{"code":"69548-6"}]},`+
				`"valueCodeableConcept":{"coding":[{"code":"NC_000962.3:g.%sN>%s"}]}}}`, pos, alt))
	}
	body := `{"resourceType":"Bundle","type":"transaction","entry":[` + strings.Join(entries, ",") + `]}`

	path := filepath.Join(dir, id+".fhir.json")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
