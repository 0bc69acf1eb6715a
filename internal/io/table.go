package io

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KyungWonPark/faroi/internal/volume"
)

// RegionHeader lists the Region Table columns
var RegionHeader = []string{"X", "Y", "Z", "FA"}

// DelimiterFor picks the Region Table delimiter from the file extension: comma for .csv, space otherwise
func DelimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ','
	}
	return ' '
}

// WriteRegionTable writes records as "X Y Z FA" rows under a "# X Y Z FA" header.
// An existing file is overwritten.
func WriteRegionTable(path string, records []volume.Record, delim rune) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("[WriteRegionTable] Failed to create file: %s: %v", path, err)
	}
	defer f.Close()

	sep := string(delim)
	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "# %s\n", strings.Join(RegionHeader, sep))
	for _, r := range records {
		fmt.Fprintf(w, "%d%s%d%s%d%s%s\n", r.X, sep, r.Y, sep, r.Z, sep, strconv.FormatFloat(r.Value, 'g', -1, 64))
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("[WriteRegionTable] Failed to write file: %s: %v", path, err)
	}
	return f.Close()
}

// ReadRegionTable reads a Region Table written with either delimiter.
// Lines starting with '#' and blank lines are skipped.
func ReadRegionTable(path string) ([]volume.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[ReadRegionTable] Failed to open file: %w", err)
	}
	defer f.Close()

	var records []volume.Record

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) != 4 {
			return nil, fmt.Errorf("%s:%d: expected 4 columns, got %d", path, lineNo, len(fields))
		}

		x, err0 := strconv.Atoi(fields[0])
		y, err1 := strconv.Atoi(fields[1])
		z, err2 := strconv.Atoi(fields[2])
		if err0 != nil || err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%s:%d: bad coordinates %q", path, lineNo, line)
		}
		value, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad value: %v", path, lineNo, err)
		}

		records = append(records, volume.Record{Coord: volume.Coord{X: x, Y: y, Z: z}, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("[ReadRegionTable] Failed to read %s: %v", path, err)
	}

	return records, nil
}
