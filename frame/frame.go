package frame

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kbukum/mlkit/errors"
)

// Frame is an ordered collection of equally long, uniquely named columns.
type Frame struct {
	cols  []Series
	index map[string]int
	rows  int
}

// New builds a frame from columns. All columns must have the same length and
// distinct names.
func New(cols ...Series) (*Frame, error) {
	f := &Frame{cols: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, errors.ShapeMismatch("", fmt.Sprintf("rows of column %q", c.Name), f.rows, c.Len())
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, errors.InvalidInput("columns", fmt.Sprintf("duplicate column name %q", c.Name))
		}
		f.index[c.Name] = i
	}
	return f, nil
}

// MustNew is like New but panics on error. Intended for literals in tests and examples.
func MustNew(cols ...Series) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// Empty returns a frame with n rows and no columns.
func Empty(n int) *Frame {
	return &Frame{index: map[string]int{}, rows: n}
}

// Rows returns the number of rows.
func (f *Frame) Rows() int { return f.rows }

// NumCols returns the number of columns.
func (f *Frame) NumCols() int { return len(f.cols) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Col returns column i.
func (f *Frame) Col(i int) Series { return f.cols[i] }

// Column returns the named column.
func (f *Frame) Column(name string) (Series, bool) {
	i, ok := f.index[name]
	if !ok {
		return Series{}, false
	}
	return f.cols[i], true
}

// Columns returns a copy of the column list.
func (f *Frame) Columns() []Series {
	out := make([]Series, len(f.cols))
	copy(out, f.cols)
	return out
}

// Take returns a new frame holding rows idx in that order.
func (f *Frame) Take(idx []int) *Frame {
	cols := make([]Series, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.Take(idx)
	}
	out := &Frame{cols: cols, index: f.index, rows: len(idx)}
	return out
}

// Select returns the named columns in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]Series, 0, len(names))
	for _, n := range names {
		c, ok := f.Column(n)
		if !ok {
			return nil, errors.NotFound("column", n)
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = f.rows
	return out, nil
}

// ByKind returns the columns of the given kind, preserving order.
func (f *Frame) ByKind(kind Kind) *Frame {
	cols := make([]Series, 0, len(f.cols))
	for _, c := range f.cols {
		if c.Kind == kind {
			cols = append(cols, c)
		}
	}
	out := MustNew(cols...)
	out.rows = f.rows
	return out
}

// HConcat concatenates frames column-wise in argument order. A column whose
// name is already taken is renamed to name_1, name_2, ... (first free suffix).
func HConcat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return Empty(0), nil
	}
	rows := frames[0].rows
	var cols []Series
	taken := make(map[string]bool)
	for _, fr := range frames {
		if fr.rows != rows {
			return nil, errors.ShapeMismatch("", "rows of concatenated frame", rows, fr.rows)
		}
		for _, c := range fr.cols {
			name := c.Name
			for n := 1; taken[name]; n++ {
				name = fmt.Sprintf("%s_%d", c.Name, n)
			}
			taken[name] = true
			cols = append(cols, c.Rename(name))
		}
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = rows
	return out, nil
}

// Matrix copies the frame into a rows x cols dense matrix. Every column must be numeric.
func (f *Frame) Matrix() (*mat.Dense, error) {
	if f.rows == 0 || len(f.cols) == 0 {
		return nil, errors.InsufficientData("", "cannot build a matrix from an empty frame")
	}
	m := mat.NewDense(f.rows, len(f.cols), nil)
	for j, c := range f.cols {
		if c.Kind != Numeric {
			return nil, errors.InvalidInput(c.Name, "matrix requires numeric columns")
		}
		m.SetCol(j, c.Num)
	}
	return m, nil
}

// FromMatrix builds a numeric frame from m using the given column names.
func FromMatrix(names []string, m mat.Matrix) (*Frame, error) {
	r, c := m.Dims()
	if len(names) != c {
		return nil, errors.ShapeMismatch("", "column names", c, len(names))
	}
	cols := make([]Series, c)
	for j := 0; j < c; j++ {
		vals := make([]float64, r)
		mat.Col(vals, j, m)
		cols[j] = NumericSeries(names[j], vals)
	}
	return New(cols...)
}

// Equal reports whether both frames hold the same columns in the same order.
func (f *Frame) Equal(o *Frame) bool {
	if f.rows != o.rows || len(f.cols) != len(o.cols) {
		return false
	}
	for i := range f.cols {
		if !f.cols[i].Equal(o.cols[i]) {
			return false
		}
	}
	return true
}
