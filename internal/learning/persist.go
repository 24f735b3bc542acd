package learning

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/your-org/regime-bracket-bot/internal/csvwriter"
)

// ErrMalformedRow is returned when a persisted matrix cannot be trusted.
var ErrMalformedRow = errors.New("malformed transition matrix row")

// Header is the first line of a persisted matrix.
var Header = []string{"From", "To", "Probability"}

// FormatProbability renders p with exactly four decimals.
func FormatProbability(p float64) string {
	return strconv.FormatFloat(p, 'f', 4, 64)
}

// SaveMatrix は行列をCSVとして保存します。行は (from, to) 順に並びます。
func SaveMatrix(path string, m *Matrix, logger *zap.Logger) error {
	w, err := csvwriter.NewWriter(path, Header, logger)
	if err != nil {
		return err
	}
	for _, r := range m.Rows() {
		if err := w.Write([]string{r.From, r.To, FormatProbability(r.Probability)}); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Close()
}

// LoadMatrix reads a matrix written by SaveMatrix. A missing file returns
// ok=false and no error. Any malformed row fails the whole load.
func LoadMatrix(path string) (m *Matrix, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to open transition matrix: %w", err)
	}
	defer f.Close()

	m, err = ReadMatrix(f)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return m, true, nil
}

// ReadMatrix parses a persisted matrix from r.
func ReadMatrix(r io.Reader) (*Matrix, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedRow)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	if !isHeader(header) {
		return nil, fmt.Errorf("%w: unexpected header %q", ErrMalformedRow, strings.Join(header, ","))
	}

	m := NewMatrix()
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, err)
		}
		if len(record) != 3 {
			return nil, fmt.Errorf("%w: line %d: expected 3 columns, got %d", ErrMalformedRow, line, len(record))
		}
		from, to := strings.TrimSpace(record[0]), strings.TrimSpace(record[1])
		if from == "" || to == "" {
			return nil, fmt.Errorf("%w: line %d: empty state", ErrMalformedRow, line)
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil || math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: line %d: bad probability %q", ErrMalformedRow, line, record[2])
		}
		if _, dup := m.Probability(from, to); dup {
			return nil, fmt.Errorf("%w: line %d: duplicate transition %s -> %s", ErrMalformedRow, line, from, to)
		}
		m.Set(from, to, p)
	}
	return m, nil
}

func isHeader(rec []string) bool {
	if len(rec) != len(Header) {
		return false
	}
	for i, h := range Header {
		if !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(rec[i], "\ufeff")), h) {
			return false
		}
	}
	return true
}
