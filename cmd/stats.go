package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"annotate/internal/clix"
)

var (
	statsSort   string
	statsOutput clix.OutputOptions
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats <dataset-id>",
	Short: "Count a dataset's comments per category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, err := clix.ParseID(args[0], "dataset ID")
		if err != nil {
			return err
		}
		sortKey, err := clix.ParseSort(cmd.Flags())
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
		stats, err := s.Stats(ctx, sortKey)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statsOutput.JSON {
			return statsOutput.WriteJSON(out, stats)
		}
		if len(stats) == 0 {
			fmt.Fprintln(out, "No comments found.")
			return nil
		}
		table := newTable(out, "Category", "Count")
		total := 0
		for _, st := range stats {
			table.Append([]string{categoryLabel(st.Category), strconv.Itoa(st.Count)})
			total += st.Count
		}
		table.SetFooter([]string{"Total", strconv.Itoa(total)})
		table.Render()
		return nil
	},
}

// categoriesCmd represents the categories command
var categoriesCmd = &cobra.Command{
	Use:   "categories <dataset-id>",
	Short: "List the categories used in a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, err := clix.ParseID(args[0], "dataset ID")
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
		categories, err := s.Categories(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, c := range categories {
			fmt.Fprintln(out, categoryLabel(c))
		}
		return nil
	},
}

var suggestLimit int

// suggestCmd represents the suggest command
var suggestCmd = &cobra.Command{
	Use:   "suggest <dataset-id> <input>",
	Short: "Suggest categories matching partial input",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, err := clix.ParseID(args[0], "dataset ID")
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
		suggestions, err := s.Suggest(ctx, args[1], suggestLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(suggestions) == 0 {
			fmt.Fprintln(out, "No suggestions.")
			return nil
		}
		for _, c := range suggestions {
			fmt.Fprintln(out, c)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(suggestCmd)

	statsCmd.Flags().StringVarP(&statsSort, "sort", "s", "", "Order by category or count (default from review.default_sort)")
	clix.AddOutputFlag(statsCmd, &statsOutput)

	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "n", 0, "Maximum suggestions (default from review.suggestion_limit)")
}
