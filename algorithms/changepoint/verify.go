package changepoint

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-cusum/config"
	"gonum.org/v1/gonum/floats"
)

// Record is the comparable form of a scan: the reference layout used to
// validate a run against a known-good one. Nil fields are missing and are not
// compared.
type Record struct {
	Channel    *int      `json:"ch,omitempty"`
	TimeBase   []float64 `json:"t01,omitempty"`
	Events     []int     `json:"cp"`
	Amplitudes []float64 `json:"yp"`
	CU         []float64 `json:"cu"`
	CL         []float64 `json:"cl"`
	MU         []float64 `json:"mu"`
	M          []float64 `json:"m"`
	TotalCount *int      `json:"total_count,omitempty"`
}

// ReadRecord decodes a JSON record and checks that the trajectories present
// have one length.
func ReadRecord(r io.Reader) (*Record, error) {
	var rec Record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	n := -1
	for _, tr := range [][]float64{rec.CU, rec.CL, rec.MU, rec.M} {
		if tr == nil {
			continue
		}
		if n >= 0 && len(tr) != n {
			return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, n, len(tr))
		}
		n = len(tr)
	}
	return &rec, nil
}

// WriteRecord encodes rec as indented JSON.
func WriteRecord(w io.Writer, rec *Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// Mismatch describes one field that differs between a reference and a computed record.
type Mismatch struct {
	Field string `json:"field"`
	// Reference and Computed are the shapes for slices, the values for scalars.
	Reference string `json:"reference"`
	Computed  string `json:"computed"`
	// Index is the first differing element, -1 when the shapes differ or the field is a scalar.
	Index int `json:"index"`
}

func (m Mismatch) String() string {
	s := fmt.Sprintf("incorrect result, key: %s, original: %s, computed: %s", m.Field, m.Reference, m.Computed)
	if m.Index >= 0 {
		s += fmt.Sprintf(", first difference at %d", m.Index)
	}
	return s
}

// Verify compares computed against reference field by field. Index fields
// must match exactly; float trajectories must match exactly or, when the
// lengths agree, within tol. An empty result means the records agree.
func Verify(reference, computed *Record, tol config.Tolerance) []Mismatch {
	var out []Mismatch

	if reference.Channel != nil {
		if computed.Channel == nil || *computed.Channel != *reference.Channel {
			out = append(out, Mismatch{
				Field:     "ch",
				Reference: fmt.Sprint(*reference.Channel),
				Computed:  optionalInt(computed.Channel),
				Index:     -1,
			})
		}
	}

	if reference.TimeBase != nil {
		out = appendFloatMismatch(out, "t01", reference.TimeBase, computed.TimeBase, tol)
	}

	if reference.Events != nil {
		if !slices.Equal(reference.Events, computed.Events) {
			out = append(out, sliceMismatch("cp", len(reference.Events), len(computed.Events),
				firstIntDifference(reference.Events, computed.Events)))
		}
	}

	fields := []struct {
		name     string
		ref, got []float64
	}{
		{"yp", reference.Amplitudes, computed.Amplitudes},
		{"cu", reference.CU, computed.CU},
		{"cl", reference.CL, computed.CL},
		{"mu", reference.MU, computed.MU},
		{"m", reference.M, computed.M},
	}
	for _, f := range fields {
		if f.ref == nil {
			continue
		}
		out = appendFloatMismatch(out, f.name, f.ref, f.got, tol)
	}

	if reference.TotalCount != nil {
		if computed.TotalCount == nil || *computed.TotalCount != *reference.TotalCount {
			out = append(out, Mismatch{
				Field:     "total_count",
				Reference: fmt.Sprint(*reference.TotalCount),
				Computed:  optionalInt(computed.TotalCount),
				Index:     -1,
			})
		}
	}

	return out
}

// WriteReport prints mismatches in a human readable block.
func WriteReport(w io.Writer, mismatches []Mismatch) error {
	sep := "---------------------------------------------"
	if _, err := fmt.Fprintf(w, "Verifying results.\n%s\n", sep); err != nil {
		return err
	}
	for _, m := range mismatches {
		if _, err := fmt.Fprintf(w, "%s\n%s\n", m, sep); err != nil {
			return err
		}
	}
	if len(mismatches) == 0 {
		_, err := fmt.Fprintln(w, "Results verified.")
		return err
	}
	_, err := fmt.Fprintf(w, "%d field(s) differ.\n", len(mismatches))
	return err
}

func appendFloatMismatch(out []Mismatch, name string, ref, got []float64, tol config.Tolerance) []Mismatch {
	if len(ref) == len(got) && floats.Equal(ref, got) {
		return out
	}
	idx := -1
	if len(ref) == len(got) {
		idx = firstFloatDifference(ref, got, tol)
		if idx < 0 {
			return out
		}
	}
	return append(out, sliceMismatch(name, len(ref), len(got), idx))
}

func sliceMismatch(name string, refLen, gotLen, idx int) Mismatch {
	if refLen != gotLen {
		idx = -1
	}
	return Mismatch{
		Field:     name,
		Reference: fmt.Sprintf("(%d,)", refLen),
		Computed:  fmt.Sprintf("(%d,)", gotLen),
		Index:     idx,
	}
}

// firstFloatDifference returns the first index where |ref-got| > abs + rel*|got|,
// or -1. A NaN on either side is always a difference, NaN against NaN included.
func firstFloatDifference(ref, got []float64, tol config.Tolerance) int {
	for i := range ref {
		a, b := ref[i], got[i]
		if math.IsNaN(a) || math.IsNaN(b) {
			return i
		}
		if math.Abs(a-b) > tol.Abs+tol.Rel*math.Abs(b) {
			return i
		}
	}
	return -1
}

func firstIntDifference(a, b []int) int {
	for i := range min(len(a), len(b)) {
		if a[i] != b[i] {
			return i
		}
	}
	return -1
}

func optionalInt(v *int) string {
	if v == nil {
		return "missing"
	}
	return fmt.Sprint(*v)
}
