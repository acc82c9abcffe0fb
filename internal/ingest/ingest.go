// Package ingest reads dataset files before they are uploaded, so the CLI
// and the UI can reject a bad file and report how many comments it holds.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"annotate/internal/models"
)

// FileMeta holds metadata about a dataset file.
type FileMeta struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Dataset is a parsed dataset file.
type Dataset struct {
	FileMeta
	Comments []string
	// Cleaned is the file content after CleanContent (and FoldPunctuation,
	// when asked for); it is what gets uploaded.
	Cleaned string
}

// ExtractFileMeta stats path.
func ExtractFileMeta(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, err
	}
	return FileMeta{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// IsSupported reports whether the backend accepts files named like name.
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".csv":
		return true
	}
	return false
}

// ReadDatasetFile reads and parses a .json or .csv dataset file.
func ReadDatasetFile(path string) (*Dataset, error) {
	meta, err := ExtractFileMeta(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset file: %w", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset file: %w", err)
	}
	ds, err := Parse(meta.Name, raw)
	if err != nil {
		return nil, err
	}
	ds.FileMeta = meta
	return ds, nil
}

// Parse parses dataset content. The extension of name picks the format:
// .json is an array of strings, .csv contributes the fields of its first
// record.
func Parse(name string, raw []byte) (*Dataset, error) {
	content := CleanContent(raw, name)

	var comments []string
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		if err := json.Unmarshal([]byte(content), &comments); err != nil {
			return nil, fmt.Errorf("%w: failed to parse JSON %s: %v", models.ErrValidation, name, err)
		}
	case ".csv":
		records, err := csv.NewReader(strings.NewReader(content)).ReadAll()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse CSV %s: %v", models.ErrValidation, name, err)
		}
		if len(records) > 0 {
			comments = records[0]
		}
	default:
		return nil, fmt.Errorf("%w: %s (expected .json or .csv)", models.ErrUnsupportedFormat, name)
	}
	if comments == nil {
		comments = []string{}
	}
	return &Dataset{
		FileMeta: FileMeta{Name: name, Size: int64(len(raw))},
		Comments: comments,
		Cleaned:  content,
	}, nil
}

// NonEmpty counts comments the backend will list (it hides empty ones).
func (d *Dataset) NonEmpty() int {
	n := 0
	for _, c := range d.Comments {
		if c != "" {
			n++
		}
	}
	return n
}
