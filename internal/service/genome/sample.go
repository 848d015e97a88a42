package genome

const (
	NA = "NA"

	// UnknownDate is the fully ambiguous date augur accepts.
	UnknownDate = "XXXX-XX-XX"
)

// Variants maps a 1-based reference position to the alternate allele.
type Variants map[int]string

type Metadata struct {
	SampleID   string
	PatientID  string
	Latitude   string
	Longitude  string
	Conclusion string
	// Date is the sampling date, YYYY-MM-DD with XX for unknown parts, or
	// empty when the bundle carries none.
	Date string
}

func NewMetadata(sampleID string) Metadata {
	return Metadata{
		SampleID:   sampleID,
		PatientID:  NA,
		Latitude:   NA,
		Longitude:  NA,
		Conclusion: NA,
	}
}

type Sample struct {
	ID       string
	Variants Variants
	Metadata Metadata
}

// ReferenceSample is the variant-free reference row of every cohort.
func ReferenceSample() Sample {
	md := NewMetadata(ReferenceID)
	md.PatientID = "Reference"
	md.Conclusion = "Reference Genome"
	return Sample{ID: ReferenceID, Variants: Variants{}, Metadata: md}
}

// AsAnchor marks s as a known reference isolate.
func (s Sample) AsAnchor() Sample {
	s.Metadata.PatientID = "Reference"
	if s.Metadata.Conclusion == NA {
		s.Metadata.Conclusion = "Anchor"
	} else {
		s.Metadata.Conclusion += " (Anchor)"
	}
	return s
}
