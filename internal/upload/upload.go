// Package upload validates and persists uploaded PDF files.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/spherical/pdf-tables/internal/domain"
	"github.com/spherical/pdf-tables/internal/pdf"
)

// DefaultFilename replaces names that sanitize to nothing.
const DefaultFilename = "document.pdf"

// SanitizeFilename reduces an uploaded name to a safe ASCII file name:
// path separators and whitespace become underscores, characters outside
// [A-Za-z0-9_.-] are dropped, and dots or underscores at either end are trimmed.
func SanitizeFilename(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	ascii, _, err := transform.String(t, name)
	if err != nil {
		ascii = name
	}

	ascii = strings.NewReplacer("/", " ", "\\", " ").Replace(ascii)
	ascii = strings.Join(strings.Fields(ascii), "_")

	var b strings.Builder
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '.' || r == '-':
			b.WriteRune(r)
		}
	}

	clean := strings.Trim(b.String(), "._")
	if clean == "" {
		return DefaultFilename
	}
	return clean
}

// IsPDF sniffs the first limit bytes of an uploaded file.
func IsPDF(fh *multipart.FileHeader, limit int) (bool, error) {
	f, err := fh.Open()
	if err != nil {
		return false, domain.IOError("open upload", err)
	}
	defer f.Close()
	return pdf.IsPDF(f, limit)
}

// Store writes uploads to <root>/<uid>/<name>.
type Store struct {
	root string
}

// NewStore creates an upload store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the upload directory.
func (s *Store) Root() string {
	return s.root
}

// Save copies src into the job's upload directory and returns the written path.
// A file already present at that path is never overwritten.
func (s *Store) Save(uid, name string, src io.Reader) (string, error) {
	dir := filepath.Join(s.root, uid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.IOError("create upload directory", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", domain.IOError(fmt.Sprintf("upload %s already exists", path), err)
		}
		return "", domain.IOError("create upload file", err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return "", domain.IOError("write upload", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", domain.IOError("sync upload", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", domain.IOError("close upload", err)
	}
	return path, nil
}

// SaveFile persists a multipart file under uid.
func (s *Store) SaveFile(uid, name string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", domain.IOError("open upload", err)
	}
	defer f.Close()
	return s.Save(uid, name, f)
}

// Remove deletes everything stored under uid.
func (s *Store) Remove(uid string) error {
	if err := os.RemoveAll(filepath.Join(s.root, uid)); err != nil {
		return domain.IOError("remove upload", err)
	}
	return nil
}
