package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"annotate/internal/clix"
	"annotate/internal/segment"
)

var (
	editComment  string
	editCategory string
)

// editCmd represents the edit command
var editCmd = &cobra.Command{
	Use:   "edit <dataset-id> <comment-id>",
	Short: "Change a comment's text or category",
	Long: `Updates a comment and writes it to the backend. Flags that are not given
keep the current value; an empty --category clears the category.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, err := clix.ParseID(args[0], "dataset ID")
		if err != nil {
			return err
		}
		commentID, err := clix.ParseID(args[1], "comment ID")
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if !flags.Changed("comment") && !flags.Changed("category") {
			return fmt.Errorf("nothing to change: pass --comment and/or --category")
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
		current, err := s.Row(ctx, commentID)
		if err != nil {
			return err
		}

		text, category := current.Comment.Comment, current.Category
		if flags.Changed("comment") {
			text = editComment
		}
		if flags.Changed("category") {
			category = editCategory
		}
		if _, err := s.Edit(ctx, commentID, text, category); err != nil {
			return err
		}
		saved, err := s.Save(ctx, commentID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved comment %d [%s]: %s\n",
			saved.ID, categoryLabel(saved.Category), snippet(saved.Comment.Comment, 80))
		return nil
	},
}

var (
	splitText      string
	splitPropose   bool
	splitSentences bool
)

// splitCmd represents the split command
var splitCmd = &cobra.Command{
	Use:   "split <dataset-id> <comment-id>",
	Short: "Split a comment into one comment per line",
	Long: `Replaces a comment by one comment per non-blank line of its text (or of
--text). The new comments keep the category. --propose only prints a
sentence-per-line version of the text; --sentences splits on that proposal.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, err := clix.ParseID(args[0], "dataset ID")
		if err != nil {
			return err
		}
		commentID, err := clix.ParseID(args[1], "comment ID")
		if err != nil {
			return err
		}
		if splitText != "" && splitSentences {
			return fmt.Errorf("--text and --sentences are mutually exclusive")
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

		out := cmd.OutOrStdout()
		text := splitText
		if splitPropose || splitSentences {
			proposal, err := s.ProposeSplit(ctx, commentID)
			if err != nil {
				return err
			}
			if splitPropose {
				fmt.Fprintln(out, proposal)
				return nil
			}
			text = proposal
		}

		before, err := s.Rows(ctx)
		if err != nil {
			return err
		}
		preview := text
		if preview == "" {
			row, err := s.Row(ctx, commentID)
			if err != nil {
				return err
			}
			preview = row.Comment.Comment
		}
		if err := s.Split(ctx, commentID, text); err != nil {
			return err
		}
		after, err := s.Rows(ctx)
		if err != nil {
			return err
		}
		lines := segment.Lines(preview)
		fmt.Fprintf(out, "Split comment %d into %d comments:\n  %s\n", commentID, len(lines), strings.Join(lines, "\n  "))
		fmt.Fprintf(out, "Dataset now has %d comments (was %d).\n", len(after), len(before))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(splitCmd)

	editCmd.Flags().StringVar(&editComment, "comment", "", "New comment text")
	editCmd.Flags().StringVar(&editCategory, "category", "", "New category")

	splitCmd.Flags().StringVar(&splitText, "text", "", "Text to split instead of the stored comment")
	splitCmd.Flags().BoolVar(&splitPropose, "propose", false, "Print a sentence-per-line proposal and exit")
	splitCmd.Flags().BoolVar(&splitSentences, "sentences", false, "Split on the sentence proposal")
}
