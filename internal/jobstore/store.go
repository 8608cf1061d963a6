package jobstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// StatusFileName is the status record inside a job directory.
const StatusFileName = "response.txt"

// ErrStatusNotFound is returned when a job has no status record.
var ErrStatusNotFound = errors.New("status file not found")

var artifactPattern = regexp.MustCompile(`^page_(\d+)_table_no_(\d+)\.csv$`)

// Artifact is one CSV file produced for a job.
type Artifact struct {
	Page  int
	Index int
	Name  string
	Path  string
}

// ArtifactName returns the file name of the index-th table on a page, both 1-based.
func ArtifactName(page, index int) string {
	return fmt.Sprintf("page_%d_table_no_%d.csv", page, index)
}

// ParseArtifactName extracts page and index from an artifact file name.
func ParseArtifactName(name string) (page, index int, ok bool) {
	m := artifactPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	page, _ = strconv.Atoi(m[1])
	index, _ = strconv.Atoi(m[2])
	return page, index, true
}

// Store keeps one directory per job under root.
// Each job directory has exactly one writer, the engine running that job.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

// JobDir returns the directory holding a job's status record and artifacts.
func (s *Store) JobDir(id string) string {
	return filepath.Join(s.root, id)
}

// Write replaces a job's status record. The record is written to a temporary
// file, synced, then renamed over the previous one, so readers see either
// the old or the new line.
func (s *Store) Write(id string, status Status) error {
	dir := s.JobDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create job directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".response-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.WriteString(status.Encode()); err != nil {
		tmp.Close()
		return fmt.Errorf("write status: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close status: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, StatusFileName)); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

// Read returns a job's current status.
func (s *Store) Read(id string) (Status, error) {
	data, err := os.ReadFile(filepath.Join(s.JobDir(id), StatusFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return Status{}, ErrStatusNotFound
	}
	if err != nil {
		return Status{}, fmt.Errorf("read status: %w", err)
	}
	return Decode(string(data))
}

// Artifacts lists a job's CSV artifacts ordered by page, then table index.
func (s *Store) Artifacts(id string) ([]Artifact, error) {
	dir := s.JobDir(id)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	var artifacts []Artifact
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		page, index, ok := ParseArtifactName(e.Name())
		if !ok {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Page:  page,
			Index: index,
			Name:  e.Name(),
			Path:  filepath.Join(dir, e.Name()),
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].Page != artifacts[j].Page {
			return artifacts[i].Page < artifacts[j].Page
		}
		return artifacts[i].Index < artifacts[j].Index
	})
	return artifacts, nil
}

// RemoveArtifacts deletes every CSV artifact of a job, leaving the status record.
func (s *Store) RemoveArtifacts(id string) error {
	artifacts, err := s.Artifacts(id)
	if err != nil {
		return err
	}
	var errs []error
	for _, a := range artifacts {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Remove deletes a job's directory, status record included.
func (s *Store) Remove(id string) error {
	if err := os.RemoveAll(s.JobDir(id)); err != nil {
		return fmt.Errorf("remove job directory: %w", err)
	}
	return nil
}
