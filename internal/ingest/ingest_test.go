package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotate/internal/models"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadDatasetFile_JSON(t *testing.T) {
	path := writeTemp(t, "survey.json", "\xEF\xBB\xBF[\"It’s fine\", \"\", \"bad\"]")

	ds, err := ReadDatasetFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"It’s fine", "", "bad"}, ds.Comments)
	assert.Equal(t, 2, ds.NonEmpty())
	assert.Equal(t, "survey.json", ds.Name)
	assert.NotContains(t, ds.Cleaned, "\xEF\xBB\xBF")
}

func TestReadDatasetFile_CSVFirstRecord(t *testing.T) {
	path := writeTemp(t, "survey.CSV", "a,\"b, c\",d\nignored,row,here\n")

	ds, err := ReadDatasetFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b, c", "d"}, ds.Comments)
}

func TestParse_EmptyCSV(t *testing.T) {
	ds, err := Parse("empty.csv", nil)
	require.NoError(t, err)
	assert.Empty(t, ds.Comments)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("notes.txt", []byte("x"))
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)

	_, err = Parse("bad.json", []byte(`{"not":"a list"}`))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = ReadDatasetFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCleanContent_InvalidUTF8(t *testing.T) {
	got := CleanContent([]byte("ok \xff done…"), "test")
	assert.Equal(t, "ok \uFFFD done…", got)
}

func TestFoldPunctuation_JSON(t *testing.T) {
	ds, err := Parse("survey.json", []byte(`["it’s — fine", "“quoted”…"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"it’s — fine", "“quoted”…"}, ds.Comments)

	require.NoError(t, ds.FoldPunctuation())
	assert.Equal(t, []string{"it's -- fine", `"quoted"...`}, ds.Comments)

	reparsed, err := Parse("survey.json", []byte(ds.Cleaned))
	require.NoError(t, err)
	assert.Equal(t, ds.Comments, reparsed.Comments)
}

func TestFoldPunctuation_CSVKeepsQuoting(t *testing.T) {
	ds, err := Parse("survey.csv", []byte("he said “hi”,plain\nsecond,row\n"))
	require.NoError(t, err)

	require.NoError(t, ds.FoldPunctuation())
	assert.Equal(t, []string{`he said "hi"`, "plain"}, ds.Comments)

	reparsed, err := Parse("survey.csv", []byte(ds.Cleaned))
	require.NoError(t, err)
	assert.Equal(t, ds.Comments, reparsed.Comments)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a.JSON"))
	assert.True(t, IsSupported("a.csv"))
	assert.False(t, IsSupported("a.xlsx"))
}
