package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// StagedWrite is a fully written artifact parked in a temporary file
// beside its final path. Commit renames it into place; Abort discards it.
// Staging every artifact of a run and committing only after all writes
// have succeeded keeps the published set consistent: either all outputs
// appear or none do.
type StagedWrite struct {
	tmp  string
	path string
}

// Stage writes the artifact to a temporary file in the destination
// directory, so a later Commit is a same-filesystem rename.
func Stage(path string, write func(io.Writer) error) (*StagedWrite, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("closing temporary file: %w", err)
	}
	return &StagedWrite{tmp: tmpPath, path: path}, nil
}

// Commit renames the staged file into its final path.
func (s *StagedWrite) Commit() error {
	if err := os.Rename(s.tmp, s.path); err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("publishing %s: %w", s.path, err)
	}
	return nil
}

// Abort removes the staged file without publishing it.
func (s *StagedWrite) Abort() {
	os.Remove(s.tmp)
}

// WriteAtomic writes through a temporary file in the destination
// directory and renames it into place, so an interrupted run never leaves
// a truncated artifact at the final path.
func WriteAtomic(path string, write func(io.Writer) error) error {
	s, err := Stage(path, write)
	if err != nil {
		return err
	}
	return s.Commit()
}
