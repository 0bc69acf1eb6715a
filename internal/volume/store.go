package volume

import (
	"fmt"
	"path/filepath"
	"sync"
)

// MaskError names the mask file that could not be loaded
type MaskError struct {
	File string
	Err  error
}

func (e *MaskError) Error() string {
	return fmt.Sprintf("mask %s: %v", e.File, e.Err)
}

func (e *MaskError) Unwrap() error {
	return e.Err
}

// MaskStore keeps loaded masks in memory, keyed by mask file name,
// so that each mask is read from disk once per run.
type MaskStore struct {
	dir    string
	loader Loader

	lock  sync.RWMutex
	masks map[string]*Volume
}

// NewMaskStore returns a store resolving mask file names against dir
func NewMaskStore(dir string, loader Loader) *MaskStore {
	return &MaskStore{
		dir:    dir,
		loader: loader,
		masks:  make(map[string]*Volume),
	}
}

// Preload loads every named mask that is not cached yet. It stops at the
// first failure, returned as a *MaskError.
func (s *MaskStore) Preload(files []string) error {
	for _, file := range files {
		if _, err := s.Get(file); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the cached mask, loading it on first use
func (s *MaskStore) Get(file string) (*Volume, error) {
	s.lock.RLock()
	vol, ok := s.masks[file]
	s.lock.RUnlock()
	if ok {
		return vol, nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if vol, ok := s.masks[file]; ok {
		return vol, nil
	}

	vol, err := s.loader.Load(filepath.Join(s.dir, file))
	if err != nil {
		return nil, &MaskError{File: file, Err: err}
	}
	vol.Name = NameFromFile(file)
	s.masks[file] = vol

	return vol, nil
}

// Len returns the number of cached masks
func (s *MaskStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.masks)
}
