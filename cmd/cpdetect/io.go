package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

// readMatrix reads a numeric CSV file into a dense matrix, one CSV row per
// matrix row. Lines starting with '#' are skipped.
func readMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.TrimLeadingSpace = true

	var data []float64
	rows, cols := 0, -1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if cols < 0 {
			cols = len(record)
		}
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %d: %w", path, rows+1, i+1, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if rows == 0 || cols <= 0 {
		return nil, fmt.Errorf("%s: no data", path)
	}
	return mat.NewDense(rows, cols, data), nil
}

// writeJSON writes v to the --output file or to the command's stdout.
func (o *options) writeJSON(cmd *cobra.Command, v any) error {
	var w io.Writer = cmd.OutOrStdout()
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
