package store

import (
	"context"
	"io"

	"annotate/internal/models"
)

// --- Comment Store ---

// CommentStore is the comment half of the backend contract.
type CommentStore interface {
	// ListComments returns the comments of a dataset. datasetID 0 lists
	// every comment the backend is willing to return.
	ListComments(ctx context.Context, datasetID int64) ([]models.Comment, error)
	UpdateComment(ctx context.Context, comment models.Comment) error
	// SplitComment asks the backend to replace the comment with one row per
	// line of comment.Comment. Any cached list is stale afterwards.
	SplitComment(ctx context.Context, comment models.Comment) error
	ListCategories(ctx context.Context) ([]string, error)
}

// --- Dataset Store ---

type DatasetStore interface {
	ListDatasets(ctx context.Context) ([]models.Dataset, error)
	CreateDataset(ctx context.Context, name, filename string, body io.Reader) (int64, error)
	DeleteDataset(ctx context.Context, id int64) error
}

// --- Export ---

type Exporter interface {
	// ExportComments copies the backend CSV export into w.
	ExportComments(ctx context.Context, w io.Writer) error
}

// Backend is everything the remote API offers.
type Backend interface {
	CommentStore
	DatasetStore
	Exporter

	Ping(ctx context.Context) error
}
