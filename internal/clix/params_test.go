package clix

import (
	"bytes"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotate/internal/models"
	"annotate/internal/review"
)

func flagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("text", "", "")
	fs.String("category", "", "")
	fs.String("sort", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(flagSet(t, "--text", "slow", "--category", "ship"))
	require.NoError(t, err)
	assert.Equal(t, review.Filter{Text: "slow", Category: "ship"}, f)

	f, err = ParseFilter(flagSet(t))
	require.NoError(t, err)
	assert.True(t, f.IsZero())
}

func TestParseSort(t *testing.T) {
	key, err := ParseSort(flagSet(t))
	require.NoError(t, err)
	assert.Equal(t, models.SortKey(""), key)

	key, err = ParseSort(flagSet(t, "--sort", "COUNT"))
	require.NoError(t, err)
	assert.Equal(t, models.SortByCount, key)

	_, err = ParseSort(flagSet(t, "--sort", "size"))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 42 ", "dataset ID")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := ParseID(bad, "dataset ID")
		assert.ErrorIs(t, err, models.ErrValidation, bad)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	o := &OutputOptions{JSON: true}
	require.NoError(t, o.WriteJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
