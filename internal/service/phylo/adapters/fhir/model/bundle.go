package model

import "encoding/json"

const (
	ResourceBundle           = "Bundle"
	ResourcePatient          = "Patient"
	ResourceObservation      = "Observation"
	ResourceDiagnosticReport = "DiagnosticReport"

	BundleTypeTransaction = "transaction"
	BundleTypeSearchSet   = "searchset"

	LinkRelationNext = "next"
)

type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type,omitempty"` // "transaction" or "searchset"
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL string `json:"fullUrl,omitempty"`
	// Resource is kept raw so fetched resources are written back unchanged.
	Resource json.RawMessage `json:"resource,omitempty"`
}

// ResourceHeader is the part every resource shares, used to dispatch on type.
type ResourceHeader struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
}

func NewTransactionBundle(resources []json.RawMessage) Bundle {
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		entries = append(entries, BundleEntry{Resource: r})
	}
	return Bundle{
		ResourceType: ResourceBundle,
		Type:         BundleTypeTransaction,
		Entry:        entries,
	}
}

// NextLink returns the url of the "next" paging link, or "" on the last page.
func (b Bundle) NextLink() string {
	for _, l := range b.Link {
		if l.Relation == LinkRelationNext {
			return l.URL
		}
	}
	return ""
}

func (e BundleEntry) Header() (ResourceHeader, error) {
	var h ResourceHeader
	if len(e.Resource) == 0 {
		return h, nil
	}
	err := json.Unmarshal(e.Resource, &h)
	return h, err
}
