package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

// FileStorage reads a mongoexport dump of the legacy license collection:
// one JSON document per line.
type FileStorage struct {
	Path string
}

// NewFileStorage creates a new FileStorage for the given export file
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{Path: path}
}

// LicenseStorage returns a loader for all legacy license records
func (store *FileStorage) LicenseStorage() loadLegacyLicenseRecords {
	return func() ([]legacyLicenseRecord, error) {
		f, err := os.Open(store.Path)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		defer f.Close()

		var records []legacyLicenseRecord
		reader := bufio.NewReader(f)
		line := 0
		for {
			data, err := reader.ReadBytes('\n')
			line++
			if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 {
				var rec legacyLicenseRecord
				if jsonErr := json.Unmarshal(trimmed, &rec); jsonErr != nil {
					return nil, errors.Wrapf(jsonErr, "line %d", line)
				}
				records = append(records, rec)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, errors.WithStack(err)
			}
		}
		return records, nil
	}
}
