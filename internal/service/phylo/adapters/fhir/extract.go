package fhir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Cleo-Systems/tbphylo/internal/service/genome"
	fhirmodel "github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/fhir/model"
)

const (
	// LOINC codes
	codeGeneticVariantAssessment = "69548-6"
	codeGenomicRefPosition       = "81254-5"

	extGeolocation = "http://hl7.org/fhir/StructureDefinition/geolocation"
)

var hgvsSubstitution = regexp.MustCompile(`g\.(\d+)[ACGTN]+>([ACGTN]+)`)

// LoadSample reads a bundle file and extracts its variants and metadata.
func LoadSample(path string) (genome.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return genome.Sample{}, fmt.Errorf("bundle %s: %w", path, genome.ErrMissingInput)
		}
		return genome.Sample{}, err
	}

	var bundle fhirmodel.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return genome.Sample{}, fmt.Errorf("bundle %s: %w", path, err)
	}
	if bundle.ResourceType != fhirmodel.ResourceBundle {
		return genome.Sample{}, fmt.Errorf("bundle %s: resourceType is %q", path, bundle.ResourceType)
	}

	sample, err := ExtractSample(genome.SampleID(path), bundle)
	if err != nil {
		return genome.Sample{}, fmt.Errorf("bundle %s: %w", path, err)
	}
	return sample, nil
}

// ExtractSample walks the bundle entries. Later variants at a position
// override earlier ones, and the last DiagnosticReport sets the conclusion.
func ExtractSample(sampleID string, bundle fhirmodel.Bundle) (genome.Sample, error) {
	sample := genome.Sample{
		ID:       sampleID,
		Variants: genome.Variants{},
		Metadata: genome.NewMetadata(sampleID),
	}

	for i, entry := range bundle.Entry {
		header, err := entry.Header()
		if err != nil {
			return sample, fmt.Errorf("entry %d: %w", i, err)
		}

		switch header.ResourceType {
		case fhirmodel.ResourcePatient:
			var p fhirmodel.Patient
			if err := json.Unmarshal(entry.Resource, &p); err != nil {
				return sample, fmt.Errorf("entry %d: patient: %w", i, err)
			}
			applyPatient(&sample.Metadata, p)

		case fhirmodel.ResourceDiagnosticReport:
			var r fhirmodel.DiagnosticReport
			if err := json.Unmarshal(entry.Resource, &r); err != nil {
				return sample, fmt.Errorf("entry %d: diagnostic report: %w", i, err)
			}
			if c := reportConclusion(r); c != "" {
				sample.Metadata.Conclusion = c
			}
			sample.Metadata.Date = earlierDate(sample.Metadata.Date, r.EffectiveDateTime)
			sample.Metadata.Date = earlierDate(sample.Metadata.Date, r.Issued)

		case fhirmodel.ResourceObservation:
			var o fhirmodel.Observation
			if err := json.Unmarshal(entry.Resource, &o); err != nil {
				return sample, fmt.Errorf("entry %d: observation: %w", i, err)
			}
			if pos, alt, ok := ObservationVariant(o); ok {
				sample.Variants[pos] = alt
				sample.Metadata.Date = earlierDate(sample.Metadata.Date, o.EffectiveDateTime)
			}
		}
	}
	return sample, nil
}

func applyPatient(md *genome.Metadata, p fhirmodel.Patient) {
	md.PatientID = p.ID
	if md.PatientID == "" {
		md.PatientID = genome.NA
	}
	for _, addr := range p.Address {
		for _, ext := range addr.Extension {
			if ext.URL != extGeolocation {
				continue
			}
			for _, sub := range ext.Extension {
				if sub.ValueDecimal == nil {
					continue
				}
				switch sub.URL {
				case "latitude":
					md.Latitude = sub.ValueDecimal.String()
				case "longitude":
					md.Longitude = sub.ValueDecimal.String()
				}
			}
		}
	}
}

/*
sampleDate reduces a FHIR date or dateTime to YYYY-MM-DD, marking missing
month or day as XX. It reports false for anything else.
*/
func sampleDate(v string) (string, bool) {
	layouts := []struct {
		layout, suffix string
		width          int
	}{
		{time.DateOnly, "", 10},
		{"2006-01", "-XX", 7},
		{"2006", "-XX-XX", 4},
	}
	for _, l := range layouts {
		if len(v) < l.width {
			continue
		}
		head := v[:l.width]
		if len(v) > l.width && l.width < 10 {
			continue
		}
		if _, err := time.Parse(l.layout, head); err == nil {
			return head + l.suffix, true
		}
	}
	return "", false
}

// earlierDate keeps the earliest sampling date. Unknown parts compare as zero.
func earlierDate(current, candidate string) string {
	d, ok := sampleDate(candidate)
	switch {
	case !ok:
		return current
	case current == "":
		return d
	case strings.ReplaceAll(d, "X", "0") < strings.ReplaceAll(current, "X", "0"):
		return d
	}
	return current
}

func reportConclusion(r fhirmodel.DiagnosticReport) string {
	var parts []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		parts = append(parts, s)
	}
	for _, cc := range r.ConclusionCode {
		add(cc.Text)
	}
	add(r.Conclusion)
	return strings.Join(parts, "; ")
}

/*
ObservationVariant extracts (position, alt) from a variant Observation.
The position comes from the genomic reference position component when
present; anything still missing is taken from the first HGVS substitution
found in the observation or component values.
*/
func ObservationVariant(o fhirmodel.Observation) (int, string, bool) {
	if !o.Code.HasCode(codeGeneticVariantAssessment) {
		return 0, "", false
	}

	var (
		pos    int
		hasPos bool
		alt    string
	)
	for _, comp := range o.Component {
		if !comp.Code.HasCode(codeGenomicRefPosition) {
			continue
		}
		switch {
		case comp.ValueRange != nil:
			pos, hasPos = comp.ValueRange.Low.Int()
		case comp.ValueInteger != nil:
			pos, hasPos = *comp.ValueInteger, true
		}
	}

	for _, candidate := range hgvsCandidates(o) {
		m := hgvsSubstitution.FindStringSubmatch(candidate)
		if m == nil {
			continue
		}
		if !hasPos {
			p, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			pos, hasPos = p, true
		}
		alt = m[2]
		break
	}

	if !hasPos || alt == "" {
		return 0, "", false
	}
	return pos, alt, true
}

func hgvsCandidates(o fhirmodel.Observation) []string {
	var ret []string
	collect := func(cc *fhirmodel.CodeableConcept) {
		if cc == nil {
			return
		}
		for _, c := range cc.Coding {
			if c.Code == "" {
				continue
			}
			if strings.Contains(c.System, "hgvs") || strings.Contains(c.Code, ":") {
				ret = append(ret, c.Code)
			}
		}
	}
	collect(o.ValueCodeableConcept)
	for _, comp := range o.Component {
		collect(comp.ValueCodeableConcept)
	}
	return ret
}
