package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"annotate/internal/ingest"
	"annotate/internal/models"
	"annotate/internal/store"
)

type CreateDatasetParams struct {
	Name string
	// Filename picks the format by extension (.json or .csv).
	Filename string
	Raw      []byte
	// FoldPunctuation uploads typographic punctuation as ASCII. By default
	// comments are uploaded exactly as written.
	FoldPunctuation bool
}

// CreatedDataset reports an upload.
type CreatedDataset struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Comments int    `json:"comments"`
}

// DatasetService encapsulates dataset listing, upload and removal.
type DatasetService struct {
	datasets store.DatasetStore
	exporter store.Exporter
	reviews  *ReviewService
}

func NewDatasetService(ds store.DatasetStore, ex store.Exporter, reviews *ReviewService) *DatasetService {
	return &DatasetService{datasets: ds, exporter: ex, reviews: reviews}
}

func (s *DatasetService) ListDatasets(ctx context.Context) ([]models.Dataset, error) {
	return s.datasets.ListDatasets(ctx)
}

// CreateDataset checks the file parses before uploading its cleaned content.
func (s *DatasetService) CreateDataset(ctx context.Context, params CreateDatasetParams) (*CreatedDataset, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: dataset name cannot be empty", models.ErrValidation)
	}
	parsed, err := ingest.Parse(params.Filename, params.Raw)
	if err != nil {
		return nil, err
	}
	return s.upload(ctx, name, params.Filename, parsed, params.FoldPunctuation)
}

// CreateDatasetFromFile uploads the file at path. Filename and Raw of params
// are ignored; an empty Name defaults to the file name without its extension.
func (s *DatasetService) CreateDatasetFromFile(ctx context.Context, path string, params CreateDatasetParams) (*CreatedDataset, error) {
	parsed, err := ingest.ReadDatasetFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = strings.TrimSuffix(parsed.Name, filepath.Ext(parsed.Name))
	}
	if name == "" {
		return nil, fmt.Errorf("%w: dataset name cannot be empty", models.ErrValidation)
	}
	return s.upload(ctx, name, parsed.Name, parsed, params.FoldPunctuation)
}

func (s *DatasetService) upload(ctx context.Context, name, filename string, parsed *ingest.Dataset, fold bool) (*CreatedDataset, error) {
	if fold {
		if err := parsed.FoldPunctuation(); err != nil {
			return nil, err
		}
	}
	id, err := s.datasets.CreateDataset(ctx, name, filename, strings.NewReader(parsed.Cleaned))
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"dataset_id": id,
		"name":       name,
		"comments":   parsed.NonEmpty(),
	}).Info("dataset uploaded")
	return &CreatedDataset{ID: id, Name: name, Comments: parsed.NonEmpty()}, nil
}

// DeleteDataset flushes any open review session of the dataset, then
// removes it from the backend.
func (s *DatasetService) DeleteDataset(ctx context.Context, id int64) error {
	if s.reviews != nil {
		if err := s.reviews.Drop(ctx, id); err != nil {
			log.WithError(err).WithField("dataset_id", id).Warn("pending edits lost on dataset delete")
		}
	}
	if err := s.datasets.DeleteDataset(ctx, id); err != nil {
		return err
	}
	log.WithField("dataset_id", id).Info("dataset deleted")
	return nil
}

// Export streams the backend's CSV export of every comment to w.
func (s *DatasetService) Export(ctx context.Context, w io.Writer) error {
	if s.reviews != nil {
		if err := s.reviews.FlushAll(ctx); err != nil {
			return fmt.Errorf("flush pending edits before export: %w", err)
		}
	}
	return s.exporter.ExportComments(ctx, w)
}
