// Package fixtures loads the canned JSON response bodies that scenarios serve in place of the
// real backend.
package fixtures

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrFixtureNotFound is matched by every error that Load returns for a missing fixture.
var ErrFixtureNotFound = errors.New("fixture not found")

// NotFoundError reports which fixture file could not be read.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fixture not found: %s (%s)", e.Path, e.Err)
	}
	return fmt.Sprintf("fixture not found: %s", e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrFixtureNotFound
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// Store reads fixture files relative to one scenario's fixture directory.
//
// Files are read on every Load so that edits show up without restarting anything.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// Load returns the contents of the fixture at relativePath, verbatim.
func (s *Store) Load(relativePath string) ([]byte, error) {
	clean := filepath.Clean(filepath.FromSlash(relativePath))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, &NotFoundError{Path: relativePath, Err: errors.New("path is outside the fixture directory")}
	}
	full := filepath.Join(s.dir, clean)
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: full}
		}
		return nil, &NotFoundError{Path: full, Err: err}
	}
	return data, nil
}

// ResolveScenarioDir computes the fixture directory for a scenario defined in sourceFile. The
// file name and its immediate parent directory are dropped, and json/<fixtureSet> is appended,
// so a scenario in acceptance/scenarios/rules.go with fixture set "rules" reads its fixtures
// from acceptance/json/rules.
func ResolveScenarioDir(sourceFile, fixtureSet string) string {
	dir := filepath.Dir(filepath.Dir(filepath.FromSlash(sourceFile)))
	return filepath.Join(dir, "json", fixtureSet)
}
