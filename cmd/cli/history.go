package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourusername/vixsrc-go/internal/app"
	"github.com/yourusername/vixsrc-go/internal/domain"
	"github.com/yourusername/vixsrc-go/internal/infrastructure"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past downloads from the local history",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openHistory()
		if err != nil {
			return err
		}
		defer repo.Close()

		batches, _ := cmd.Flags().GetBool("batches")
		if batches {
			limit, _ := cmd.Flags().GetInt("limit")
			records, err := repo.ListBatches(limit)
			if err != nil {
				return err
			}
			printBatches(os.Stdout, records)
			return nil
		}

		filters := make(map[string]interface{})
		if batchID, _ := cmd.Flags().GetString("batch"); batchID != "" {
			filters["batch_id"] = batchID
		}
		if state, _ := cmd.Flags().GetString("state"); state != "" {
			if !domain.ValidateState(domain.TaskState(state)) {
				return fmt.Errorf("invalid state: %s", state)
			}
			filters["state"] = state
		}

		tasks, err := repo.FindAll(filters)
		if err != nil {
			return err
		}
		printTasks(os.Stdout, tasks)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics from the local history",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openHistory()
		if err != nil {
			return err
		}
		defer repo.Close()

		stats, err := repo.GetStats()
		if err != nil {
			return err
		}

		fmt.Println("Download Statistics:")
		fmt.Printf("  Total:       %d\n", stats.Total)
		fmt.Printf("  Queued:      %d\n", stats.Queued)
		fmt.Printf("  Extracting:  %d\n", stats.Extracting)
		fmt.Printf("  Downloading: %d\n", stats.Downloading)
		fmt.Printf("  Succeeded:   %d\n", stats.Succeeded)
		fmt.Printf("  Failed:      %d\n", stats.Failed)
		return nil
	},
}

func init() {
	historyCmd.Flags().String("batch", "", "Only tasks of this batch")
	historyCmd.Flags().StringP("state", "s", "", "Filter by state (queued, extracting, downloading, succeeded, failed)")
	historyCmd.Flags().Bool("batches", false, "List batches instead of tasks")
	historyCmd.Flags().Int("limit", 20, "Number of batches to list")
}

func openHistory() (*infrastructure.SQLiteTaskRepository, error) {
	if err := app.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := os.Stat(config.History.DatabasePath); err != nil {
		return nil, fmt.Errorf("no history at %s", config.History.DatabasePath)
	}
	return infrastructure.NewSQLiteTaskRepository(config.History.DatabasePath)
}

func printTasks(w io.Writer, tasks []*domain.DownloadTask) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCONTENT\tLANG\tQUALITY\tSTATE\tDESTINATION\tERROR")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(task.ID, 8),
			task.Ref,
			task.Lang,
			task.Quality,
			task.State,
			truncate(task.Destination, 50),
			truncate(task.ErrorMessage, 40))
	}
	tw.Flush()
}

func printBatches(w io.Writer, batches []*domain.BatchRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tTOTAL\tSUCCEEDED\tFAILED\tSTATUS\tCREATED")
	for _, b := range batches {
		status := "finished"
		if b.Running {
			status = "running"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			b.ID,
			truncate(b.Source, 30),
			b.Total,
			b.Succeeded,
			b.Failed,
			status,
			b.CreatedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
