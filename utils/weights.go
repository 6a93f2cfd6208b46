package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrPersistenceFormat reports a weight stream that is not a list of real numbers
// of the expected length.
var ErrPersistenceFormat = errors.New("invalid weight file")

// FormatError locates a parse failure in a weight stream.
type FormatError struct {
	Line  int
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %v", ErrPersistenceFormat, e.Err)
	}
	return fmt.Sprintf("%s: line %d: %q: %v", ErrPersistenceFormat, e.Line, e.Value, e.Err)
}

func (e *FormatError) Unwrap() []error {
	return []error{ErrPersistenceFormat, e.Err}
}

// WriteFlat writes one value per line in %.18e notation.
func WriteFlat(w io.Writer, flat []float64) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	for _, v := range flat {
		buf = strconv.AppendFloat(buf[:0], v, 'e', 18, 64)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("writing weights: %w", err)
		}
	}
	return bw.Flush()
}

// ReadFlat parses whitespace-separated real numbers, in any mix of rows and
// columns. Nothing is returned unless the whole stream parses.
func ReadFlat(r io.Reader) ([]float64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<28)
	var flat []float64
	var lineNum int
	for scanner.Scan() {
		lineNum++
		for _, field := range strings.Fields(scanner.Text()) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, &FormatError{Line: lineNum, Value: field, Err: err}
			}
			flat = append(flat, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading weights: %w", err)
	}
	if len(flat) == 0 {
		return nil, &FormatError{Err: errors.New("no values")}
	}
	return flat, nil
}

// SaveWeights saves a flat parameter vector to a text file
func SaveWeights(filepath string, flat []float64) error {
	f, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create weights file: %w", err)
	}
	if err := WriteFlat(f, flat); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadWeights loads a flat parameter vector from a text file
func LoadWeights(filepath string) ([]float64, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}
	defer f.Close()
	return ReadFlat(f)
}
