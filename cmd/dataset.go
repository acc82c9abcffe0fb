package cmd

import (
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"annotate/internal/clix"
	"annotate/internal/services"
)

var datasetsOutput clix.OutputOptions

// datasetsCmd represents the datasets command
var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List datasets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get app from context: %w", err)
		}
		datasets, err := appInstance.DatasetService.ListDatasets(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list datasets: %w", err)
		}

		out := cmd.OutOrStdout()
		if datasetsOutput.JSON {
			return datasetsOutput.WriteJSON(out, datasets)
		}
		if len(datasets) == 0 {
			fmt.Fprintln(out, "No datasets found.")
			return nil
		}
		table := newTable(out, "ID", "Name")
		for _, d := range datasets {
			table.Append([]string{strconv.FormatInt(d.ID, 10), d.Name})
		}
		table.Render()
		return nil
	},
}

// datasetCmd groups dataset management subcommands
var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Create or delete datasets",
}

var (
	datasetName      string
	datasetFoldMarks bool
)

var datasetCreateCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Upload a .json or .csv file as a new dataset",
	Long: `Uploads a dataset file. A .json file holds an array of strings; for a
.csv file the fields of the first record become the comments. The name
defaults to the file name without its extension. Comments are uploaded as
written unless --fold-punctuation is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get app from context: %w", err)
		}
		created, err := appInstance.DatasetService.CreateDatasetFromFile(cmd.Context(), args[0], services.CreateDatasetParams{
			Name:            datasetName,
			FoldPunctuation: datasetFoldMarks,
		})
		if err != nil {
			return fmt.Errorf("failed to create dataset: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created dataset %d (%s) with %d comments.\n", created.ID, created.Name, created.Comments)
		return nil
	},
}

var datasetDeleteCmd = &cobra.Command{
	Use:   "delete <dataset-id>",
	Short: "Delete a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := clix.ParseID(args[0], "dataset ID")
		if err != nil {
			return err
		}
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get app from context: %w", err)
		}
		if err := appInstance.DatasetService.DeleteDataset(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete dataset %d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted dataset %d.\n", id)
		return nil
	},
}

var exportOutput string

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every comment as CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get app from context: %w", err)
		}

		w := cmd.OutOrStdout()
		if exportOutput != "" && exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOutput, err)
			}
			defer f.Close()
			w = f
		}
		if err := appInstance.DatasetService.Export(cmd.Context(), w); err != nil {
			return fmt.Errorf("failed to export comments: %w", err)
		}
		if exportOutput != "" && exportOutput != "-" {
			log.Infof("Exported comments to %s", exportOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(exportCmd)
	datasetCmd.AddCommand(datasetCreateCmd)
	datasetCmd.AddCommand(datasetDeleteCmd)

	clix.AddOutputFlag(datasetsCmd, &datasetsOutput)
	datasetCreateCmd.Flags().StringVarP(&datasetName, "name", "n", "", "Dataset name (default: file name)")
	datasetCreateCmd.Flags().BoolVar(&datasetFoldMarks, "fold-punctuation", false, "Upload typographic quotes, dashes and ellipses as ASCII")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to this file instead of stdout")
}
