package summary

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/KyungWonPark/faroi/internal/io"
	"github.com/KyungWonPark/faroi/internal/volume"
	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/stat"
)

// Summary partitions a Region Table into zero and nonzero voxels
type Summary struct {
	Path    string
	Entries int
	// Zero lists coordinates whose value is exactly 0, in file order
	Zero []volume.Coord
	// NonZero maps coordinates to their nonzero value
	NonZero map[volume.Coord]float64
}

// Partition splits records into zero-valued coordinates and a coordinate->value map of the rest
func Partition(records []volume.Record) ([]volume.Coord, map[volume.Coord]float64) {
	zero := []volume.Coord{}
	nonZero := make(map[volume.Coord]float64)
	for _, r := range records {
		if r.Value == 0 {
			zero = append(zero, r.Coord)
		} else {
			nonZero[r.Coord] = r.Value
		}
	}
	return zero, nonZero
}

// Summarize reads back a Region Table, text or .npy, and partitions it
func Summarize(path string) (*Summary, error) {
	read := io.ReadRegionTable
	if strings.EqualFold(filepath.Ext(path), ".npy") {
		read = io.NpyToRecords
	}
	records, err := read(path)
	if err != nil {
		return nil, err
	}

	zero, nonZero := Partition(records)
	return &Summary{
		Path:    path,
		Entries: len(records),
		Zero:    zero,
		NonZero: nonZero,
	}, nil
}

// MeanStd returns mean and standard deviation of the nonzero values, NaN when there are none
func (s *Summary) MeanStd() (float64, float64) {
	if len(s.NonZero) == 0 {
		return math.NaN(), math.NaN()
	}
	values := make([]float64, 0, len(s.NonZero))
	for _, v := range s.NonZero {
		values = append(values, v)
	}
	return stat.MeanStdDev(values, nil)
}

// Report formats the per-file counts
func (s *Summary) Report() string {
	mean, std := s.MeanStd()
	return fmt.Sprintf("%s\n\tNumber of Entries: %s\n\tNumber of Zero Voxels: %s\n\tNumber of Non-Zero Voxels: %s\n\tNon-Zero FA: mean %.4f, std %.4f\n",
		s.Path,
		humanize.Comma(int64(s.Entries)),
		humanize.Comma(int64(len(s.Zero))),
		humanize.Comma(int64(len(s.NonZero))),
		mean, std)
}

// SubjectSummary counts the values of one aggregate row
type SubjectSummary struct {
	Subject string
	Entries int
	Zero    int
	NonZero int
	// Missing counts NaN pad values
	Missing int
	// Counts holds the per-mask value counts, nil without a counts file
	Counts []int
}

// AggregateSummary describes an aggregate table, one entry per subject row
type AggregateSummary struct {
	Path     string
	Masks    []string
	Subjects []SubjectSummary
}

// SummarizeAggregate reads an aggregate table and, when present, its counts file
func SummarizeAggregate(path string) (*AggregateSummary, error) {
	rows, err := io.ReadAggregateCSV(path)
	if err != nil {
		return nil, err
	}

	s := &AggregateSummary{Path: path}
	var counts map[string][]int
	if _, err := os.Stat(io.CountsPath(path)); err == nil {
		s.Masks, counts, err = io.ReadCountsCSV(io.CountsPath(path))
		if err != nil {
			return nil, err
		}
	}

	for _, row := range rows {
		ss := SubjectSummary{Subject: row.Subject, Entries: len(row.Values), Counts: counts[row.Subject]}
		for _, v := range row.Values {
			switch {
			case math.IsNaN(v):
				ss.Missing++
			case v == 0:
				ss.Zero++
			default:
				ss.NonZero++
			}
		}
		s.Subjects = append(s.Subjects, ss)
	}

	return s, nil
}

// Report formats one line per subject
func (s *AggregateSummary) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\tNumber of Subjects: %s\n", s.Path, humanize.Comma(int64(len(s.Subjects))))
	for _, ss := range s.Subjects {
		fmt.Fprintf(&b, "\t%s: %s values, %s zero, %s non-zero",
			ss.Subject, humanize.Comma(int64(ss.Entries)), humanize.Comma(int64(ss.Zero)), humanize.Comma(int64(ss.NonZero)))
		if ss.Missing > 0 {
			fmt.Fprintf(&b, ", %s missing", humanize.Comma(int64(ss.Missing)))
		}
		if len(ss.Counts) == len(s.Masks) && len(s.Masks) > 0 {
			parts := make([]string, len(s.Masks))
			for i, m := range s.Masks {
				parts[i] = fmt.Sprintf("%s=%d", volume.NameFromFile(m), ss.Counts[i])
			}
			fmt.Fprintf(&b, " (%s)", strings.Join(parts, " "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
