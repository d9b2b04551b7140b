package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Frame is a table with one label per column.
type Frame struct {
	Columns []string
	Data    *mat.Dense
}

// NewFrame labels data; the label count must match the column count.
func NewFrame(columns []string, data *mat.Dense) (*Frame, error) {
	if _, c := data.Dims(); c != len(columns) {
		return nil, fmt.Errorf("%w: %d labels for %d columns", ErrConfiguration, len(columns), c)
	}
	return &Frame{Columns: append([]string(nil), columns...), Data: data}, nil
}

// Rows returns the number of rows.
func (f *Frame) Rows() int {
	r, _ := f.Data.Dims()
	return r
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]float64, error) {
	for j, c := range f.Columns {
		if c == name {
			return mat.Col(nil, j, f.Data), nil
		}
	}
	return nil, fmt.Errorf("dataset: no column %q", name)
}

// WriteCSV writes a header row followed by the data.
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Columns); err != nil {
		return err
	}
	r, c := f.Data.Dims()
	record := make([]string, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			record[j] = strconv.FormatFloat(f.Data.At(i, j), 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes the frame to path.
func (f *Frame) WriteCSVFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.WriteCSV(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadCSV parses a header row and numeric records.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("dataset: csv is empty")
		}
		return nil, err
	}
	cols := len(header)
	data := make([]float64, 0, 1024*cols)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("dataset: line %d column %q: %w", line, header[j], err)
			}
			data = append(data, v)
		}
	}
	rows := len(data) / cols
	if rows == 0 {
		return &Frame{Columns: header, Data: &mat.Dense{}}, nil
	}
	return &Frame{Columns: header, Data: mat.NewDense(rows, cols, data)}, nil
}

// ReadCSVFile reads a frame from path.
func ReadCSVFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file)
}
