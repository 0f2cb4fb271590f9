package frame

import (
	"strconv"
)

// Kind is the element type of a Series.
type Kind int

const (
	// Numeric columns hold float64 values.
	Numeric Kind = iota
	// Categorical columns hold string labels.
	Categorical
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Series is one homogeneous column. Exactly one of Num and Cat is used,
// according to Kind.
type Series struct {
	Name string
	Kind Kind
	Num  []float64
	Cat  []string
}

// NumericSeries builds a numeric column.
func NumericSeries(name string, values []float64) Series {
	return Series{Name: name, Kind: Numeric, Num: values}
}

// CategoricalSeries builds a categorical column.
func CategoricalSeries(name string, values []string) Series {
	return Series{Name: name, Kind: Categorical, Cat: values}
}

// Len returns the number of rows.
func (s Series) Len() int {
	if s.Kind == Categorical {
		return len(s.Cat)
	}
	return len(s.Num)
}

// IsZero reports whether the series is absent (no name, no values).
func (s Series) IsZero() bool {
	return s.Name == "" && s.Num == nil && s.Cat == nil
}

// Label returns the string form of row i, used to compare class labels
// independently of the column kind.
func (s Series) Label(i int) string {
	if s.Kind == Categorical {
		return s.Cat[i]
	}
	return strconv.FormatFloat(s.Num[i], 'g', -1, 64)
}

// Float returns row i as a number. Categorical values that do not parse are
// reported with ok=false.
func (s Series) Float(i int) (float64, bool) {
	if s.Kind == Numeric {
		return s.Num[i], true
	}
	v, err := strconv.ParseFloat(s.Cat[i], 64)
	return v, err == nil
}

// Take returns a new series holding rows idx in that order.
func (s Series) Take(idx []int) Series {
	out := Series{Name: s.Name, Kind: s.Kind}
	if s.Kind == Categorical {
		out.Cat = make([]string, len(idx))
		for i, r := range idx {
			out.Cat[i] = s.Cat[r]
		}
		return out
	}
	out.Num = make([]float64, len(idx))
	for i, r := range idx {
		out.Num[i] = s.Num[r]
	}
	return out
}

// Rename returns a copy of the series header with a new name. Values are shared.
func (s Series) Rename(name string) Series {
	s.Name = name
	return s
}

// Equal reports whether both series have the same name, kind and values.
func (s Series) Equal(o Series) bool {
	if s.Name != o.Name || s.Kind != o.Kind || s.Len() != o.Len() {
		return false
	}
	for i := 0; i < s.Len(); i++ {
		if s.Kind == Categorical {
			if s.Cat[i] != o.Cat[i] {
				return false
			}
		} else if s.Num[i] != o.Num[i] {
			return false
		}
	}
	return true
}

// Encode label-encodes s. Codes index into classes, which holds each distinct
// value once in first-seen order; classes.Take(codes) restores s.
func Encode(s Series) (codes []int, classes Series) {
	seen := make(map[string]int)
	codes = make([]int, s.Len())
	var firstRows []int
	for i := 0; i < s.Len(); i++ {
		label := s.Label(i)
		code, ok := seen[label]
		if !ok {
			code = len(firstRows)
			seen[label] = code
			firstRows = append(firstRows, i)
		}
		codes[i] = code
	}
	classes = s.Take(firstRows)
	return codes, classes
}
