package io

import (
	"errors"
	"fmt"

	"github.com/KyungWonPark/faroi/internal/volume"
	"github.com/gonum/matrix/mat64"
	"github.com/kshedden/gonpy"
)

// ErrEmptyArray is returned when a .npy file holds no elements
var ErrEmptyArray = errors.New("empty array")

// Mat64toNpy writes mat64 matrix to Python numpy npy binary file
func Mat64toNpy(path string, matrix *mat64.Dense) error {
	rows, cols := matrix.Dims()
	rawMat := matrix.RawMatrix()

	data := rawMat.Data
	if rawMat.Stride != cols {
		data = make([]float64, 0, rows*cols)
		for i := 0; i < rows; i++ {
			data = append(data, rawMat.Data[i*rawMat.Stride:i*rawMat.Stride+cols]...)
		}
	}

	return writeNpy(path, []int{rows, cols}, data[:rows*cols])
}

func writeNpy(path string, shape []int, data []float64) error {
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("[Mat64toNpy] Failed to open file: %v", err)
	}
	w.Shape = shape
	w.Version = 2
	if err := w.WriteFloat64(data); err != nil {
		return fmt.Errorf("[Mat64toNpy] Failed to write file: %v", err)
	}

	return nil
}

// NpytoMat64 reads Python numpy npy binary file as mat64 matrix
func NpytoMat64(path string) (*mat64.Dense, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("[NpytoMat64] Failed to open file: %v", err)
	}
	if len(r.Shape) != 2 {
		return nil, fmt.Errorf("[NpytoMat64] %s: expected 2-D array, got shape %v", path, r.Shape)
	}

	rows := r.Shape[0]
	cols := r.Shape[1]
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("[NpytoMat64] %s: %w", path, ErrEmptyArray)
	}
	data, err := r.GetFloat64()
	if err != nil {
		return nil, fmt.Errorf("[NpytoMat64] Failed to read file: %v", err)
	}

	matrix := mat64.NewDense(rows, cols, data)
	return matrix, nil
}

// RecordsToMat64 lays records out as an N by 4 (x, y, z, value) matrix.
// It returns nil for an empty slice since mat64 has no empty matrices.
func RecordsToMat64(records []volume.Record) *mat64.Dense {
	if len(records) == 0 {
		return nil
	}

	matrix := mat64.NewDense(len(records), 4, nil)
	for i, r := range records {
		matrix.Set(i, 0, float64(r.X))
		matrix.Set(i, 1, float64(r.Y))
		matrix.Set(i, 2, float64(r.Z))
		matrix.Set(i, 3, r.Value)
	}

	return matrix
}

// RecordsToNpy writes records as an N by 4 npy array, the counterpart of the text Region Table
func RecordsToNpy(path string, records []volume.Record) error {
	matrix := RecordsToMat64(records)
	if matrix == nil {
		return writeNpy(path, []int{0, 4}, []float64{})
	}
	return Mat64toNpy(path, matrix)
}

// NpyToRecords reads an N by 4 array written by RecordsToNpy
func NpyToRecords(path string) ([]volume.Record, error) {
	matrix, err := NpytoMat64(path)
	if errors.Is(err, ErrEmptyArray) {
		return []volume.Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	rows, cols := matrix.Dims()
	if cols != 4 {
		return nil, fmt.Errorf("[NpyToRecords] %s: got %d columns, want 4", path, cols)
	}

	records := make([]volume.Record, rows)
	for i := range records {
		var c [3]int
		for j := range c {
			v := matrix.At(i, j)
			c[j] = int(v)
			if v < 0 || float64(c[j]) != v {
				return nil, fmt.Errorf("[NpyToRecords] %s: row %d: bad coordinate %v", path, i, v)
			}
		}
		records[i] = volume.Record{Coord: volume.Coord{X: c[0], Y: c[1], Z: c[2]}, Value: matrix.At(i, 3)}
	}

	return records, nil
}

// RowsToMat64 stacks equal-length rows into a matrix. Ragged or empty input is an error.
func RowsToMat64(rows []AggregateRow) (*mat64.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows")
	}

	cols := len(rows[0].Values)
	if cols == 0 {
		return nil, fmt.Errorf("rows have no values")
	}

	matrix := mat64.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		if len(row.Values) != cols {
			return nil, fmt.Errorf("row %s has %d values, want %d", row.Subject, len(row.Values), cols)
		}
		matrix.SetRow(i, row.Values)
	}

	return matrix, nil
}
