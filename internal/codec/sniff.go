package codec

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// SampleSize is the number of bytes inspected when validating an encoding.
const SampleSize = 10 << 20

// cascade lists the encodings tried after the preferred one, strictest first.
var cascade = []string{UTF8BOM, UTF8, CP1252, Latin1}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// validUTF8 checks sample as UTF-8, tolerating a rune cut by the sample end.
func validUTF8(sample []byte, truncated bool) bool {
	sample = bytes.TrimPrefix(sample, utf8BOM)
	if utf8.Valid(sample) {
		return true
	}
	if !truncated {
		return false
	}
	for cut := 1; cut < utf8.UTFMax && cut <= len(sample); cut++ {
		if utf8.Valid(sample[:len(sample)-cut]) {
			return true
		}
	}
	return false
}

// decodes reports whether enc decodes sample without substitutions.
func decodes(name string, enc encoding.Encoding, sample []byte, truncated bool) bool {
	switch name {
	case UTF8BOM, UTF8, "utf8", "utf8-sig":
		return validUTF8(sample, truncated)
	}
	out, err := enc.NewDecoder().Bytes(sample)
	if err != nil {
		return false
	}
	return !bytes.ContainsRune(out, utf8.RuneError)
}

// Sniff selects the first encoding of the cascade that decodes sample,
// starting with preferred. When none does, preferred is returned with ok
// set to false and the caller decodes with replacement characters.
func Sniff(sample []byte, truncated bool, preferred Resolution) (Resolution, bool) {
	tried := map[string]bool{}
	candidates := append([]string{preferred.Name}, cascade...)
	for _, name := range candidates {
		if tried[name] {
			continue
		}
		tried[name] = true

		enc := preferred.Encoding
		if name != preferred.Name {
			var err error
			if enc, err = Lookup(name); err != nil {
				continue
			}
		}
		if decodes(name, enc, sample, truncated) {
			return Resolution{Name: name, Encoding: enc}, true
		}
	}
	return preferred, false
}

// DecodedFile is a file opened through its detected encoding.
type DecodedFile struct {
	io.Reader
	file     *os.File
	Encoding Resolution
	// Warning is set when no encoding validated the sample.
	Warning string
}

// Close closes the underlying file.
func (f *DecodedFile) Close() error {
	return f.file.Close()
}

// Open opens path for reading, decoding it with the first encoding of the
// cascade that validates the leading SampleSize bytes.
func Open(path string, preferred Resolution) (*DecodedFile, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the run configuration
	if err != nil {
		return nil, err
	}

	sample := make([]byte, SampleSize)
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		_ = f.Close()
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	truncated := n == SampleSize
	sample = sample[:n]

	res, ok := Sniff(sample, truncated, preferred)
	df := &DecodedFile{file: f, Encoding: res}
	if !ok {
		df.Warning = fmt.Sprintf("no encoding validated %s, decoding as %q with replacement characters", path, res.Name)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rewinding %s: %w", path, err)
	}
	df.Reader = transform.NewReader(f, res.Encoding.NewDecoder())
	return df, nil
}

// NewWriter encodes text written to w with res. Runes the encoding cannot
// represent are replaced. Close flushes pending output but leaves w open.
func NewWriter(w io.Writer, res Resolution) io.WriteCloser {
	return transform.NewWriter(w, encoding.ReplaceUnsupported(res.Encoding.NewEncoder()))
}
