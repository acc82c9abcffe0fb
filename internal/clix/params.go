package clix

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"annotate/internal/models"
	"annotate/internal/review"
)

// OutputOptions selects between tables and JSON.
type OutputOptions struct {
	JSON bool
}

func AddOutputFlag(cmd *cobra.Command, o *OutputOptions) {
	cmd.Flags().BoolVar(&o.JSON, "json", false, "Output as JSON.")
}

// WriteJSON prints v as indented JSON.
func (o *OutputOptions) WriteJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// ParseID parses a positional ID argument.
func ParseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", models.ErrValidation, what, arg)
	}
	return id, nil
}

// ParseFilter reads the --text and --category flags.
func ParseFilter(flags *pflag.FlagSet) (review.Filter, error) {
	text, _ := flags.GetString("text")
	category, _ := flags.GetString("category")
	return review.Filter{Text: text, Category: category}, nil
}

// ParseSort reads --sort. An unset flag returns "" so the configured
// default applies.
func ParseSort(flags *pflag.FlagSet) (models.SortKey, error) {
	raw, _ := flags.GetString("sort")
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return models.ParseSortKey(raw)
}
