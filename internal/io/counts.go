package io

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CountsPath returns the file that holds per-mask value counts for an aggregate table
func CountsPath(tablePath string) string {
	return strings.TrimSuffix(tablePath, filepath.Ext(tablePath)) + ".counts.csv"
}

// WriteCountsCSV writes a "subject,<mask>..." header and, per row, how many
// values each mask contributed. Padding is not counted.
func WriteCountsCSV(path string, masks []string, rows []AggregateRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("[WriteCountsCSV] Failed to create file: %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"subject"}, masks...)); err != nil {
		return fmt.Errorf("[WriteCountsCSV] Failed to write file: %s: %v", path, err)
	}

	for _, row := range rows {
		if len(row.Counts) != len(masks) {
			return fmt.Errorf("[WriteCountsCSV] subject %s has %d counts for %d masks", row.Subject, len(row.Counts), len(masks))
		}
		record := make([]string, 0, len(masks)+1)
		record = append(record, row.Subject)
		for _, n := range row.Counts {
			record = append(record, strconv.Itoa(n))
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("[WriteCountsCSV] Failed to write file: %s: %v", path, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("[WriteCountsCSV] Failed to write file: %s: %v", path, err)
	}
	return f.Close()
}

// ReadCountsCSV reads a counts file back: the mask names of its header and
// the counts of each subject.
func ReadCountsCSV(path string) ([]string, map[string][]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("[ReadCountsCSV] Failed to open file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("[ReadCountsCSV] Failed to parse CSV file: %v", err)
	}
	if len(records) == 0 || len(records[0]) == 0 || records[0][0] != "subject" {
		return nil, nil, fmt.Errorf("[ReadCountsCSV] %s: missing header", path)
	}

	masks := records[0][1:]
	counts := make(map[string][]int, len(records)-1)
	for i, record := range records[1:] {
		row := make([]int, len(masks))
		for j, field := range record[1:] {
			n, err := strconv.Atoi(field)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: row %d: %v", path, i+2, err)
			}
			row[j] = n
		}
		counts[record[0]] = row
	}

	return masks, counts, nil
}
