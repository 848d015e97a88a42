package genome

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

const lineWidth = 60

var ErrMissingInput = errors.New("missing input")

// Record is one named sequence. Nts are upper-case.
type Record struct {
	Name string
	Nts  []byte
}

/*
ReadFASTA reads every record in r. Only the first word of a header line is
kept as the name and sequences are upper-cased.
*/
func ReadFASTA(r io.Reader) ([]Record, error) {
	template := linear.NewSeq("", nil, alphabet.DNAredundant)
	sc := seqio.NewScanner(fasta.NewReader(r, template))

	var ret []Record
	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		ret = append(ret, Record{
			Name: s.ID,
			Nts:  bytes.ToUpper(alphabet.LettersToBytes(s.Seq)),
		})
	}
	if err := sc.Error(); err != nil {
		return nil, err
	}
	return ret, nil
}

// LoadReference reads a single-record FASTA, gzipped or not.
func LoadReference(path string) (Record, error) {
	fd, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, fmt.Errorf("reference %s: %w", path, ErrMissingInput)
		}
		return Record{}, err
	}
	defer fd.Close()

	var r io.Reader = fd
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(fd)
		if err != nil {
			return Record{}, fmt.Errorf("reference %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	records, err := ReadFASTA(r)
	if err != nil {
		return Record{}, fmt.Errorf("reference %s: %w", path, err)
	}
	if len(records) != 1 {
		return Record{}, fmt.Errorf("reference %s: expected 1 record, found %d", path, len(records))
	}
	if len(records[0].Nts) == 0 {
		return Record{}, fmt.Errorf("reference %s: empty sequence", path)
	}
	return records[0], nil
}

func WriteFASTA(w io.Writer, records ...Record) error {
	bw := bufio.NewWriter(w)
	fw := fasta.NewWriter(bw, lineWidth)
	for _, rec := range records {
		s := linear.NewSeq(rec.Name, alphabet.BytesToLetters(rec.Nts), alphabet.DNAredundant)
		if _, err := fw.Write(s); err != nil {
			return fmt.Errorf("write %s: %w", rec.Name, err)
		}
	}
	return bw.Flush()
}

/*
SaveFASTA writes the records to path through a temp file in the same
directory, so a failed write never leaves a truncated FASTA at path.
*/
func SaveFASTA(path string, records ...Record) error {
	return WriteAtomic(path, func(w io.Writer) error {
		return WriteFASTA(w, records...)
	})
}

// WriteAtomic creates path's directory, writes via fill and renames into place.
func WriteAtomic(path string, fill func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
