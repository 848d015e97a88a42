package genome

import (
	"path/filepath"
	"strings"
)

const (
	ConsensusSuffix = ".consensus.fasta"

	// ReferenceID names the reference genome in cohort outputs.
	ReferenceID = "H37Rv"
)

// BundleStem strips the directory and any trailing ".json" then ".fhir".
func BundleStem(bundlePath string) string {
	name := filepath.Base(bundlePath)
	name = strings.TrimSuffix(name, ".json")
	name = strings.TrimSuffix(name, ".fhir")
	return name
}

// ConsensusFileName maps X.fhir.json to X.consensus.fasta.
func ConsensusFileName(bundlePath string) string {
	return BundleStem(bundlePath) + ConsensusSuffix
}

// ConsensusPath is where the consensus for bundlePath is published under dir.
func ConsensusPath(dir, bundlePath string) string {
	return filepath.Join(dir, ConsensusFileName(bundlePath))
}

// SampleID is the bundle stem without a ".merged" marker.
func SampleID(bundlePath string) string {
	return strings.TrimSuffix(BundleStem(bundlePath), ".merged")
}
