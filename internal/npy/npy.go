// Package npy reads and writes feature files in NumPy .npy format:
// little-endian float64, shape (F,) for one vector or (T, F) for a
// sequence of T frames.
package npy

import (
	"errors"
	"fmt"
	"os"

	"github.com/ayusman/mudra/internal/feature"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// ErrShape is returned for arrays that are not 1-D or 2-D, or ragged sequences.
var ErrShape = errors.New("unsupported array shape")

// WriteVector writes v as a 1-D array, replacing path.
func WriteVector(path string, v feature.Vector) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrShape)
	}
	return write(path, []float64(v))
}

// WriteSequence writes seq as a 2-D array of len(seq) rows, replacing path.
func WriteSequence(path string, seq feature.Sequence) error {
	if len(seq) == 0 || len(seq[0]) == 0 {
		return fmt.Errorf("%w: empty sequence", ErrShape)
	}

	cols := len(seq[0])
	flat := make([]float64, 0, len(seq)*cols)
	for i, v := range seq {
		if len(v) != cols {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i, len(v), cols)
		}
		flat = append(flat, v...)
	}

	return write(path, mat.NewDense(len(seq), cols, flat))
}

func write(path string, val any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := npyio.Write(f, val); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// ReadAny reads a 1-D or 2-D array as rows. A 1-D array is one row.
func ReadAny(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if r.Header.Descr.Fortran {
		return nil, fmt.Errorf("%w: %s is fortran ordered", ErrShape, path)
	}

	shape := r.Header.Descr.Shape

	var data []float64
	if err := r.Read(&data); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch len(shape) {
	case 1:
		return [][]float64{data}, nil
	case 2:
		rows, cols := shape[0], shape[1]
		if rows*cols != len(data) {
			return nil, fmt.Errorf("%w: %s has %d values for shape %v", ErrShape, path, len(data), shape)
		}
		out := make([][]float64, rows)
		for i := range out {
			out[i] = data[i*cols : (i+1)*cols : (i+1)*cols]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s has shape %v", ErrShape, path, shape)
	}
}

// ReadVector reads a 1-D feature file.
func ReadVector(path string) (feature.Vector, error) {
	rows, err := ReadAny(path)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("%w: %s has %d rows, want a vector", ErrShape, path, len(rows))
	}
	return feature.Vector(rows[0]), nil
}

// ReadSequence reads a feature file as frames. A 1-D file is one frame.
func ReadSequence(path string) (feature.Sequence, error) {
	rows, err := ReadAny(path)
	if err != nil {
		return nil, err
	}
	seq := make(feature.Sequence, len(rows))
	for i, row := range rows {
		seq[i] = feature.Vector(row)
	}
	return seq, nil
}
