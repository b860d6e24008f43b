package gblup

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/mat"
)

// LoadGenotypesNpy reads a markers-by-individuals float64 matrix from a
// .npy file.
func LoadGenotypesNpy(filename string) (*mat.Dense, error) {
	r, err := gonpy.NewFileReader(filename)
	if err != nil {
		return nil, fmt.Errorf("gblup: opening %s: %w", filename, err)
	}
	if len(r.Shape) != 2 {
		return nil, fmt.Errorf("gblup: %s: want a 2-d array, got shape %v", filename, r.Shape)
	}
	data, err := r.GetFloat64()
	if err != nil {
		return nil, fmt.Errorf("gblup: reading %s: %w", filename, err)
	}
	m, n := r.Shape[0], r.Shape[1]
	if !r.ColumnMajor {
		return mat.NewDense(m, n, data), nil
	}
	out := mat.NewDense(m, n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < m; i++ {
			out.Set(i, j, data[j*m+i])
		}
	}
	return out, nil
}

// LoadMatrixFromFile reads a delimited text file of floats into a dense
// matrix.
func LoadMatrixFromFile(filename string, delim rune) (*mat.Dense, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("gblup: opening %s: %w", filename, err)
	}
	defer f.Close()

	c := csv.NewReader(f)
	c.Comma = delim
	text, err := c.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("gblup: reading %s: %w", filename, err)
	}
	lines := len(text)
	if lines == 0 {
		return nil, fmt.Errorf("gblup: %s is empty", filename)
	}
	columns := len(text[0])

	data := make([]float64, columns*lines)
	for i := 0; i < lines; i++ {
		for j := 0; j < columns; j++ {
			data[i*columns+j], err = strconv.ParseFloat(text[i][j], 64)
			if err != nil {
				return nil, fmt.Errorf("gblup: %s row %d col %d: %w", filename, i, j, err)
			}
		}
	}
	return mat.NewDense(lines, columns, data), nil
}

// LoadVectorFromFile reads one float per line.
func LoadVectorFromFile(filename string) ([]float64, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("gblup: opening %s: %w", filename, err)
	}
	defer f.Close()

	var out []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("gblup: %s line %d: %w", filename, len(out)+1, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gblup: reading %s: %w", filename, err)
	}
	return out, nil
}

// ReadMarkerIDs reads one marker identifier per line.
func ReadMarkerIDs(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("gblup: opening %s: %w", filename, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gblup: reading %s: %w", filename, err)
	}
	return out, nil
}

// WriteScores writes marker scores as tab-separated text, one marker per
// row, with a z column when z-scores were computed.
func WriteScores(filename string, scores *MarkerScores) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("gblup: creating %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	header := []string{"marker", "effect", "variance"}
	if scores.Z != nil {
		header = append(header, "z")
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for j, id := range scores.IDs {
		rec := []string{
			id,
			strconv.FormatFloat(scores.Effect[j], 'g', -1, 64),
			strconv.FormatFloat(scores.Variance[j], 'g', -1, 64),
		}
		if scores.Z != nil {
			rec = append(rec, strconv.FormatFloat(scores.Z[j], 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
