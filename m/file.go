package m

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// ReadDataset reads CSV records of the form label,f1,...,fn. Every record must
// have the width of the first one.
func ReadDataset(reader io.Reader) (*mat.Dense, []int, error) {
	r := csv.NewReader(bufio.NewReader(reader))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var data []float64
	var labels []int
	width := 0
	lineNum := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading record: %w", err)
		}
		lineNum++
		if width == 0 {
			width = len(record)
			if width < 2 {
				return nil, nil, errInvalidLine{lineNum: lineNum, splits: width, expected: 2}
			}
		}
		if len(record) != width {
			return nil, nil, errInvalidLine{lineNum: lineNum, splits: len(record), expected: width}
		}

		label, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, nil, fmt.Errorf("parsing label at line %d: %w", lineNum, err)
		}
		labels = append(labels, label)
		for _, split := range record[1:] {
			x, err := strconv.ParseFloat(split, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("parsing input at line %d: %w", lineNum, err)
			}
			data = append(data, x)
		}
	}
	if lineNum == 0 {
		return nil, nil, degenerate("dataset is empty")
	}
	return mat.NewDense(lineNum, width-1, data), labels, nil
}

type errInvalidLine struct {
	lineNum  int
	splits   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.splits)
}
