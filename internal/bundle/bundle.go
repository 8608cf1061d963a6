// Package bundle packs a job's CSV artifacts into a single download.
package bundle

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/klauspost/compress/zip"
	"github.com/xuri/excelize/v2"

	"github.com/spherical/pdf-tables/internal/jobstore"
)

// ErrArtifactMissing is matched by errors returned when an artifact disappeared before bundling.
var ErrArtifactMissing = errors.New("artifact missing")

// MissingError names the artifact that could not be read.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("File %s not found", e.Name)
}

func (e *MissingError) Unwrap() error {
	return ErrArtifactMissing
}

func readArtifact(a jobstore.Artifact) ([]byte, fs.FileInfo, error) {
	info, err := os.Stat(a.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, &MissingError{Name: a.Name}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("stat %s: %w", a.Name, err)
	}
	data, err := os.ReadFile(a.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, &MissingError{Name: a.Name}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", a.Name, err)
	}
	return data, info, nil
}

// Zip builds an in-memory archive with one deflated entry per artifact.
// A missing artifact fails the whole archive rather than truncating it.
func Zip(artifacts []jobstore.Artifact) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, a := range artifacts {
		data, info, err := readArtifact(a)
		if err != nil {
			zw.Close()
			return nil, err
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     a.Name,
			Method:   zip.Deflate,
			Modified: info.ModTime(),
		})
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("zip entry %s: %w", a.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			zw.Close()
			return nil, fmt.Errorf("zip write %s: %w", a.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip close: %w", err)
	}
	return buf.Bytes(), nil
}

// SheetName is the worksheet name of an artifact, e.g. p3_t1.
func SheetName(a jobstore.Artifact) string {
	return fmt.Sprintf("p%d_t%d", a.Page, a.Index)
}

// Workbook builds an XLSX file with one worksheet per artifact, in artifact order.
func Workbook(artifacts []jobstore.Artifact) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	for i, a := range artifacts {
		data, _, err := readArtifact(a)
		if err != nil {
			return nil, err
		}

		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		records, err := r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", a.Name, err)
		}

		sheet := SheetName(a)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("add sheet %s: %w", sheet, err)
		}

		for row, rec := range records {
			values := make([]interface{}, len(rec))
			for j, v := range rec {
				values[j] = v
			}
			cell, _ := excelize.CoordinatesToCellName(1, row+1)
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return nil, fmt.Errorf("write %s row %d: %w", sheet, row+1, err)
			}
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
