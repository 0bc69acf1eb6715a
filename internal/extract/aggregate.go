package extract

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KyungWonPark/faroi/internal/config"
	"github.com/KyungWonPark/faroi/internal/io"
	"golang.org/x/sync/errgroup"
)

// Table is the aggregate table of one mask group
type Table struct {
	Name   string
	Output string
	Masks  []string
	Rows   []io.AggregateRow
	// Padded is set when short rows were filled with the pad sentinel
	Padded bool
}

// Widths returns the shortest and longest row length
func (t *Table) Widths() (min, max int) {
	for i, row := range t.Rows {
		n := len(row.Values)
		if i == 0 || n < min {
			min = n
		}
		if n > max {
			max = n
		}
	}
	return min, max
}

// Ragged reports whether rows differ in length
func (t *Table) Ragged() bool {
	min, max := t.Widths()
	return min != max
}

// Aggregate is the result of AggregateSubjects
type Aggregate struct {
	// Tables maps group name to its table
	Tables map[string]*Table
	// Groups holds the group names in configuration order
	Groups []string
	// Subjects lists the subjects that made it into the tables, sorted
	Subjects []string
	// Failures lists subjects left out, sorted by subject
	Failures []*SubjectError
}

// Ordered returns the tables in configuration order
func (a *Aggregate) Ordered() []*Table {
	tables := make([]*Table, 0, len(a.Groups))
	for _, name := range a.Groups {
		tables = append(tables, a.Tables[name])
	}
	return tables
}

// SubjectFile is a subject scan found under the aggregation root
type SubjectFile struct {
	ID   string
	Path string
}

// FindSubjects walks root and returns every regular file whose name ends with suffix,
// sorted by subject id and then path.
func FindSubjects(root, suffix string) ([]SubjectFile, error) {
	var subjects []SubjectFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		subjects = append(subjects, SubjectFile{ID: SubjectID(path, suffix), Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Slice(subjects, func(i, j int) bool {
		if subjects[i].ID != subjects[j].ID {
			return subjects[i].ID < subjects[j].ID
		}
		return subjects[i].Path < subjects[j].Path
	})

	return subjects, nil
}

// AggregateSubjects builds one row per subject found under root for every
// configured group. Subjects that fail are reported in Failures and left out
// of every table; a mask that cannot be loaded fails the whole run.
func (e *Extractor) AggregateSubjects(root string) (*Aggregate, error) {
	subjects, err := FindSubjects(root, e.cfg.SubjectSuffix)
	if err != nil {
		return nil, err
	}

	var used []string
	for _, g := range e.cfg.Groups {
		used = append(used, g.Masks...)
	}
	if err := e.preloadMasks(used); err != nil {
		return nil, err
	}

	e.emit(Event{Kind: GatherStarted, Count: len(subjects)})

	// rows[i][g] is subject i's row for group g
	rows := make([][]io.AggregateRow, len(subjects))
	failures := make([]*SubjectError, len(subjects))

	var g errgroup.Group
	g.SetLimit(e.cfg.NumWorkers())
	for i := range subjects {
		g.Go(func() error {
			rows[i], failures[i] = e.gatherSubject(subjects[i])
			if failures[i] != nil {
				e.emit(Event{Kind: SubjectFailed, Subject: subjects[i].ID, Mask: failures[i].Mask, Err: failures[i].Err})
			} else {
				e.emit(Event{Kind: SubjectDone, Subject: subjects[i].ID, Count: len(e.cfg.Groups)})
			}
			return nil
		})
	}
	g.Wait()

	agg := &Aggregate{Tables: make(map[string]*Table, len(e.cfg.Groups))}
	for gi, group := range e.cfg.Groups {
		t := &Table{Name: group.Name, Output: group.Output, Masks: group.Masks}
		for i := range subjects {
			if failures[i] == nil {
				t.Rows = append(t.Rows, rows[i][gi])
			}
		}
		agg.Tables[group.Name] = t
		agg.Groups = append(agg.Groups, group.Name)
	}
	for i, s := range subjects {
		if failures[i] != nil {
			agg.Failures = append(agg.Failures, failures[i])
		} else {
			agg.Subjects = append(agg.Subjects, s.ID)
		}
	}

	e.emit(Event{Kind: GatherFinished, Count: len(agg.Subjects)})

	if err := e.applyRaggedPolicy(agg); err != nil {
		return nil, err
	}

	return agg, nil
}

// gatherSubject extracts every group row of one subject, in group and mask order
func (e *Extractor) gatherSubject(s SubjectFile) ([]io.AggregateRow, *SubjectError) {
	subject, err := e.loader.Load(s.Path)
	if err != nil {
		return nil, &SubjectError{Subject: s.ID, Err: err}
	}

	threshold := e.cfg.ThresholdValue()
	rows := make([]io.AggregateRow, len(e.cfg.Groups))
	for gi, group := range e.cfg.Groups {
		row := io.AggregateRow{Subject: s.ID, Values: []float64{}, Counts: make([]int, len(group.Masks))}
		for mi, file := range group.Masks {
			mask, err := e.masks.Get(file)
			if err != nil {
				return nil, maskFailure(s.ID, err)
			}
			records, err := ExtractRegion(subject, mask, threshold)
			if err != nil {
				return nil, &SubjectError{Subject: s.ID, Mask: file, Err: err}
			}
			for _, r := range records {
				row.Values = append(row.Values, r.Value)
			}
			row.Counts[mi] = len(records)
		}
		rows[gi] = row
	}

	return rows, nil
}

func (e *Extractor) applyRaggedPolicy(agg *Aggregate) error {
	switch e.cfg.Ragged.Policy {
	case config.RaggedReject:
		for _, t := range agg.Ordered() {
			if t.Ragged() {
				min, max := t.Widths()
				return fmt.Errorf("%w: group %s has rows of %d to %d values", ErrRaggedRow, t.Name, min, max)
			}
		}
	case config.RaggedPad:
		pad, err := e.cfg.PadValue()
		if err != nil {
			return err
		}
		for _, t := range agg.Ordered() {
			PadRows(t, pad)
		}
	}
	return nil
}

// PadRows extends every row of t to the longest row length with pad.
// Counts keep the number of real values.
func PadRows(t *Table, pad float64) {
	_, max := t.Widths()
	for i := range t.Rows {
		for len(t.Rows[i].Values) < max {
			t.Rows[i].Values = append(t.Rows[i].Values, pad)
		}
	}
	t.Padded = true
}

// WriteAggregate writes one CSV per group under the output directory, with a
// .counts.csv next to it giving each subject's value count per mask.
// Rectangular tables are also written as .npy when enabled, with the row
// subjects in a .subjects.txt file next to it.
func (e *Extractor) WriteAggregate(agg *Aggregate) error {
	if err := os.MkdirAll(e.cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}

	for _, t := range agg.Ordered() {
		path := filepath.Join(e.cfg.Output.Dir, t.Output)
		if err := io.WriteAggregateCSV(path, t.Rows); err != nil {
			return fmt.Errorf("group %s: %w", t.Name, err)
		}
		if err := io.WriteCountsCSV(io.CountsPath(path), t.Masks, t.Rows); err != nil {
			return fmt.Errorf("group %s: %w", t.Name, err)
		}
		e.emit(Event{Kind: GroupWritten, Group: t.Name, Path: path, Count: len(t.Rows)})

		if !e.cfg.Output.Npy || t.Ragged() {
			continue
		}
		matrix, err := io.RowsToMat64(t.Rows)
		if err != nil {
			// nothing to stack: no subjects, or no retained voxels
			continue
		}
		if err := io.Mat64toNpy(npyPath(path), matrix); err != nil {
			return fmt.Errorf("group %s: %w", t.Name, err)
		}
		ids := make([]string, len(t.Rows))
		for i, row := range t.Rows {
			ids[i] = row.Subject
		}
		subjectsPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".subjects.txt"
		if err := os.WriteFile(subjectsPath, []byte(strings.Join(ids, "\n")+"\n"), 0644); err != nil {
			return fmt.Errorf("group %s: %v", t.Name, err)
		}
	}

	return nil
}
