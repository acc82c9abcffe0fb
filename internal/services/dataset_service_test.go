package services_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotate/internal/models"
	"annotate/internal/services"
	"annotate/internal/store/storetest"
)

func newDatasetService(t *testing.T, b *storetest.Backend) (*services.DatasetService, *services.ReviewService) {
	t.Helper()
	st := newRemote(t, b)
	rs := services.NewReviewService(st, services.ReviewOptions{SaveDelay: time.Hour})
	return services.NewDatasetService(st, st, rs), rs
}

// Helper function to create a temporary file for testing
func createTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDatasetService_CreateFromUpload(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	ds, rs := newDatasetService(t, b)

	created, err := ds.CreateDataset(ctx, services.CreateDatasetParams{
		Name:     "  Survey  ",
		Filename: "survey.json",
		Raw:      []byte(`["Too slow", "", "Nice staff"]`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Survey", created.Name)
	assert.Equal(t, 2, created.Comments)

	datasets, err := ds.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Dataset{{ID: created.ID, Name: "Survey"}}, datasets)

	s, err := rs.Session(ctx, created.ID)
	require.NoError(t, err)
	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nice staff", "Too slow"}, texts(rows))
}

func TestDatasetService_CreateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	ds, _ := newDatasetService(t, b)

	_, err := ds.CreateDataset(ctx, services.CreateDatasetParams{Name: " ", Filename: "a.json", Raw: []byte(`[]`)})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = ds.CreateDataset(ctx, services.CreateDatasetParams{Name: "a", Filename: "a.txt", Raw: []byte("x")})
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)

	_, err = ds.CreateDataset(ctx, services.CreateDatasetParams{Name: "a", Filename: "a.json", Raw: []byte(`{"not": "a list"}`)})
	assert.ErrorIs(t, err, models.ErrValidation)

	datasets, err := ds.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Empty(t, datasets)
}

func TestDatasetService_CreateFromFileDefaultsName(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	ds, _ := newDatasetService(t, b)

	path := createTempFile(t, "feedback.csv", "late,cheap,rude\n")
	created, err := ds.CreateDatasetFromFile(ctx, path, services.CreateDatasetParams{})
	require.NoError(t, err)
	assert.Equal(t, "feedback", created.Name)
	assert.Equal(t, 3, created.Comments)
}

func TestDatasetService_UploadKeepsPunctuation(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	ds, rs := newDatasetService(t, b)

	created, err := ds.CreateDataset(ctx, services.CreateDatasetParams{
		Name:     "Survey",
		Filename: "survey.json",
		Raw:      []byte("\xEF\xBB\xBF[\"it’s — fine\"]"),
	})
	require.NoError(t, err)

	s, err := rs.Session(ctx, created.ID)
	require.NoError(t, err)
	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"it’s — fine"}, texts(rows))
}

func TestDatasetService_FoldPunctuationOptIn(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	ds, rs := newDatasetService(t, b)

	path := createTempFile(t, "quotes.csv", "“late”,it’s — fine\n")
	created, err := ds.CreateDatasetFromFile(ctx, path, services.CreateDatasetParams{
		Name:            "Quotes",
		FoldPunctuation: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created.Comments)

	s, err := rs.Session(ctx, created.ID)
	require.NoError(t, err)
	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{`"late"`, "it's -- fine"}, texts(rows))
}

func TestDatasetService_DeleteFlushesSession(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	ds, rs := newDatasetService(t, b)
	id := b.SeedDataset(t, "old", "one")

	s, err := rs.Session(ctx, id)
	require.NoError(t, err)
	rows, _ := s.Rows(ctx)
	_, err = s.Edit(ctx, rows[0].ID, "one", "Final")
	require.NoError(t, err)

	require.NoError(t, ds.DeleteDataset(ctx, id))
	assert.Len(t, b.Updates(), 1)

	datasets, err := ds.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Empty(t, datasets)
}

func TestDatasetService_ExportIncludesPendingEdits(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	ds, rs := newDatasetService(t, b)
	id := b.SeedDataset(t, "survey", "late")

	s, err := rs.Session(ctx, id)
	require.NoError(t, err)
	rows, _ := s.Rows(ctx)
	_, err = s.Edit(ctx, rows[0].ID, "late", "Shipping")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ds.Export(ctx, &buf))
	assert.Equal(t, "comment,category\nlate,Shipping\n", buf.String())
}
