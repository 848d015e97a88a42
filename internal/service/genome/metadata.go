package genome

import (
	"encoding/csv"
	"io"
)

var metadataHeader = []string{"sample_id", "patient_id", "latitude", "longitude", "conclusion"}

func WriteMetadata(w io.Writer, rows []Metadata) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(metadataHeader); err != nil {
		return err
	}
	for _, md := range rows {
		err := cw.Write([]string{md.SampleID, md.PatientID, md.Latitude, md.Longitude, md.Conclusion})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var augurMetadataHeader = []string{"strain", "date"}

// WriteAugurMetadata writes the strain/date table "augur refine" reads.
func WriteAugurMetadata(w io.Writer, rows []Metadata) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(augurMetadataHeader); err != nil {
		return err
	}
	for _, md := range rows {
		date := md.Date
		if date == "" {
			date = UnknownDate
		}
		if err := cw.Write([]string{md.SampleID, date}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
