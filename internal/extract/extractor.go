// Package extract pulls FA values out of subject scans inside ROI masks and
// writes them as per-region tables or per-group aggregate tables.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KyungWonPark/faroi/internal/config"
	"github.com/KyungWonPark/faroi/internal/io"
	"github.com/KyungWonPark/faroi/internal/volume"
)

// Extractor runs extraction passes for one configuration.
// Masks are cached and shared by every subject it processes.
type Extractor struct {
	cfg      *config.Config
	loader   volume.Loader
	masks    *volume.MaskStore
	observer Observer
}

// NewExtractor returns an Extractor reading volumes through loader.
// observer may be nil.
func NewExtractor(cfg *config.Config, loader volume.Loader, observer Observer) *Extractor {
	return &Extractor{
		cfg:      cfg,
		loader:   loader,
		masks:    volume.NewMaskStore(cfg.MaskDir, loader),
		observer: observer,
	}
}

func (e *Extractor) preloadMasks(files []string) error {
	before := e.masks.Len()
	if err := e.masks.Preload(files); err != nil {
		return err
	}
	if n := e.masks.Len() - before; n > 0 {
		e.emit(Event{Kind: MasksLoaded, Count: n})
	}
	return nil
}

// ExtractAll writes one Region Table per configured mask for a single subject.
// The subject and every mask are loaded before anything is written, so a
// missing or unreadable volume leaves no partial output.
func (e *Extractor) ExtractAll(subjectPath string) error {
	subjectID := SubjectID(subjectPath, e.cfg.SubjectSuffix)

	if err := e.preloadMasks(e.cfg.Masks); err != nil {
		return maskFailure(subjectID, err)
	}

	subject, err := e.loader.Load(subjectPath)
	if err != nil {
		return &SubjectError{Subject: subjectID, Err: err}
	}

	threshold := e.cfg.ThresholdValue()
	tables := make([][]volume.Record, len(e.cfg.Masks))
	for i, file := range e.cfg.Masks {
		mask, err := e.masks.Get(file)
		if err != nil {
			return maskFailure(subjectID, err)
		}
		tables[i], err = ExtractRegion(subject, mask, threshold)
		if err != nil {
			return &SubjectError{Subject: subjectID, Mask: file, Err: err}
		}
	}

	namer := e.cfg.Namer()
	paths := make([]string, len(e.cfg.Masks))
	for i, file := range e.cfg.Masks {
		paths[i] = namer(subjectID, volume.NameFromFile(file))
		if err := os.MkdirAll(filepath.Dir(paths[i]), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %v", err)
		}
	}

	for i, file := range e.cfg.Masks {
		region := volume.NameFromFile(file)
		path := paths[i]

		if err := io.WriteRegionTable(path, tables[i], io.DelimiterFor(path)); err != nil {
			return &SubjectError{Subject: subjectID, Mask: file, Err: err}
		}
		if e.cfg.Output.Npy {
			if err := io.RecordsToNpy(npyPath(path), tables[i]); err != nil {
				return &SubjectError{Subject: subjectID, Mask: file, Err: err}
			}
		}

		e.emit(Event{Kind: RegionWritten, Subject: subjectID, Mask: region, Path: path, Count: len(tables[i])})
	}

	e.emit(Event{Kind: SubjectDone, Subject: subjectID, Count: len(e.cfg.Masks)})
	return nil
}

// maskFailure attributes a mask loading error to subject, naming the mask
func maskFailure(subject string, err error) *SubjectError {
	var me *volume.MaskError
	if errors.As(err, &me) {
		return &SubjectError{Subject: subject, Mask: me.File, Err: me.Err}
	}
	return &SubjectError{Subject: subject, Err: err}
}

// SubjectID strips the directory and the suffix from a subject scan path
func SubjectID(path, suffix string) string {
	return strings.TrimSuffix(filepath.Base(path), suffix)
}

func npyPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".npy"
}
