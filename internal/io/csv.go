package io

import (
	"encoding/csv"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// AggregateRow is one subject's row of an aggregate table.
// Counts holds how many values each mask of the group contributed.
type AggregateRow struct {
	Subject string
	Values  []float64
	Counts  []int
}

// WriteAggregateCSV writes rows as "subject,v1,v2,..." lines. Rows may differ in length.
func WriteAggregateCSV(path string, rows []AggregateRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("[WriteAggregateCSV] Failed to create file: %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	stride := runtime.NumCPU()
	parsed := make([][]string, stride)

	for row := 0; row < len(rows); row += stride {
		var wg sync.WaitGroup
		jobMark := stride

		if row+stride >= len(rows) {
			jobMark = len(rows) - row
		}

		wg.Add(jobMark)
		for offset := 0; offset < jobMark; offset++ {
			go formatRow(rows, parsed, offset, row, &wg)
		}
		wg.Wait()

		for i := 0; i < jobMark; i++ {
			if err := w.Write(parsed[i]); err != nil {
				return fmt.Errorf("[WriteAggregateCSV] Failed to write file: %s: %v", path, err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("[WriteAggregateCSV] Failed to write file: %s: %v", path, err)
	}
	return f.Close()
}

func formatRow(rows []AggregateRow, parsed [][]string, offset int, row int, wg *sync.WaitGroup) {
	defer wg.Done()

	r := rows[row+offset]
	record := make([]string, 0, len(r.Values)+1)
	record = append(record, r.Subject)
	for _, v := range r.Values {
		record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
	}

	parsed[offset] = record
}

// ReadAggregateCSV reads an aggregate table back. Counts are not stored in the file and stay nil.
func ReadAggregateCSV(path string) ([]AggregateRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[ReadAggregateCSV] Failed to open file: %w", err)
	}
	defer f.Close()

	csvReader := csv.NewReader(f)
	csvReader.FieldsPerRecord = -1
	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("[ReadAggregateCSV] Failed to parse CSV file: %v", err)
	}

	rows := make([]AggregateRow, len(records))
	errs := make([]error, len(records))

	workers := runtime.NumCPU()
	order := make(chan int, workers)
	var wg sync.WaitGroup

	wg.Add(len(records))

	for i := 0; i < workers; i++ {
		go parseRow(records, rows, errs, order, &wg)
	}

	for i := range records {
		order <- i
	}

	wg.Wait()
	close(order)

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %v", path, i+1, err)
		}
	}

	return rows, nil
}

func parseRow(records [][]string, rows []AggregateRow, errs []error, order <-chan int, wg *sync.WaitGroup) {
	for index := range order {
		record := records[index]
		row := AggregateRow{Subject: record[0], Values: make([]float64, 0, len(record)-1)}

		for _, field := range record[1:] {
			value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				errs[index] = err
				break
			}
			row.Values = append(row.Values, value)
		}

		rows[index] = row
		wg.Done()
	}
}
