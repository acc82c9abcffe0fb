package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"annotate/internal/clix"
	"annotate/internal/review"
)

var (
	commentsWidth  int
	commentsOutput clix.OutputOptions
)

// commentsCmd represents the comments command
var commentsCmd = &cobra.Command{
	Use:   "comments <dataset-id>",
	Short: "List a dataset's comments",
	Long: `Lists the comments of a dataset in backend order. --text and --category
keep the comments whose text or category contains the value, ignoring case.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, err := clix.ParseID(args[0], "dataset ID")
		if err != nil {
			return err
		}
		filter, err := clix.ParseFilter(cmd.Flags())
		if err != nil {
			return err
		}

		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get app from context: %w", err)
		}
		ctx := cmd.Context()
		s, err := appInstance.ReviewService.Session(ctx, datasetID)
		if err != nil {
			return fmt.Errorf("failed to load dataset: %w", err)
		}
		all, err := s.Rows(ctx)
		if err != nil {
			return err
		}
		rows, err := s.Visible(ctx, filter)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if commentsOutput.JSON {
			if rows == nil {
				rows = []review.Row{}
			}
			return commentsOutput.WriteJSON(out, rows)
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, "No comments found.")
			return nil
		}

		table := newTable(out, "ID", "Category", "Comment")
		for _, r := range rows {
			table.Append([]string{
				strconv.FormatInt(r.ID, 10),
				categoryLabel(r.Category),
				snippet(r.Comment.Comment, commentsWidth),
			})
		}
		table.Render()
		fmt.Fprintf(out, "Displayed %d of %d comments.\n", len(rows), len(all))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commentsCmd)

	commentsCmd.Flags().StringP("text", "t", "", "Keep comments whose text contains this value")
	commentsCmd.Flags().StringP("category", "c", "", "Keep comments whose category contains this value")
	commentsCmd.Flags().IntVarP(&commentsWidth, "width", "w", 80, "Truncate comment text to this many characters (0 = no limit)")
	clix.AddOutputFlag(commentsCmd, &commentsOutput)
}
