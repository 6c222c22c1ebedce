package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/vixsrc-go/internal/domain"
)

var submitCmd = &cobra.Command{
	Use:   "submit [batch-file]",
	Short: "Submit a batch file to a running vixsrc-server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		lines, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read batch file: %w", err)
		}
		parallel, _ := cmd.Flags().GetInt("parallel")
		outputDir, _ := cmd.Flags().GetString("output-dir")

		payload := map[string]interface{}{
			"lines":      string(lines),
			"parallel":   parallel,
			"output_dir": outputDir,
		}
		data, _ := json.Marshal(payload)

		resp, err := http.Post(serverURL+"/api/v1/batches", "application/json", bytes.NewBuffer(data))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusAccepted {
			return fmt.Errorf("server rejected batch (%d): %s", resp.StatusCode, body)
		}

		var result struct {
			BatchID string `json:"batch_id"`
			Total   int    `json:"total"`
			Skipped []struct {
				Line  int    `json:"line"`
				Error string `json:"error"`
			} `json:"skipped"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("invalid server response: %w", err)
		}

		for _, s := range result.Skipped {
			fmt.Fprintf(os.Stderr, "Skipped line %d: %s\n", s.Line, s.Error)
		}
		fmt.Printf("Batch submitted!\n")
		fmt.Printf("ID:    %s\n", result.BatchID)
		fmt.Printf("Tasks: %d\n", result.Total)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [batch-id]",
	Short: "Show a batch on a running vixsrc-server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		resp, err := http.Get(serverURL + "/api/v1/batches/" + args[0])
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
		}

		var result struct {
			Batch domain.BatchRecord     `json:"batch"`
			Tasks []*domain.DownloadTask `json:"tasks"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("invalid server response: %w", err)
		}

		printBatches(os.Stdout, []*domain.BatchRecord{&result.Batch})
		fmt.Println()
		printTasks(os.Stdout, result.Tasks)

		if !result.Batch.Running && result.Batch.Failed > 0 {
			return errFailed
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{submitCmd, statusCmd} {
		cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
		cmd.Flags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start the server if it is not running")
	}
	submitCmd.Flags().IntP("parallel", "p", 0, "Concurrent downloads (default from server config)")
	submitCmd.Flags().StringP("output-dir", "d", "", "Output directory on the server")
}

// ensureServer starts the server if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}
