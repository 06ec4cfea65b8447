package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Delimiter separates CSV fields. Values may contain commas.
const Delimiter = ';'

// WriteCSV writes records with the template delimiter. Fields are quoted only when needed.
func WriteCSV(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// ReadCSV reads records written by WriteCSV
func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

// WriteCSVFile writes records to path
func WriteCSVFile(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSVFile reads the records of the file at path
func ReadCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}
