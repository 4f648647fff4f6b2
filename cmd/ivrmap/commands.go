package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/ivrmap/internal/config"
)

// --- explore ---

var exploreCmd = &cobra.Command{
	Use:   "explore <phone-number>",
	Short: "Start exploring a phone tree",
	Long: `Start an asynchronous exploration of a phone tree.

Examples:
  ivrmap explore +15551234567
  ivrmap explore +15551234567 --callback-url https://hooks.example.com/ivr
  ivrmap explore +15551234567 --wait`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		callbackURL, _ := cmd.Flags().GetString("callback-url")
		wait, _ := cmd.Flags().GetBool("wait")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"phoneNumber": args[0]}
		if callbackURL != "" {
			req["callbackUrl"] = callbackURL
		}

		resp, err := client.post("/jobs", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		jobID := result["jobId"]
		printSuccess("Started exploration job %s", jobID)

		if !wait {
			return nil
		}
		return waitForJob(client, jobID)
	},
}

func waitForJob(client *apiClient, jobID string) error {
	printStep("Waiting for job %s...", jobID)

	lastStatus := ""
	for {
		resp, err := client.get("/jobs/" + jobID)
		if err != nil {
			return err
		}

		var snap struct {
			Status string `json:"status"`
			Error  string `json:"error"`
			Result *struct {
				Context string `json:"context"`
			} `json:"result"`
		}
		if err := decodeJSON(resp, &snap); err != nil {
			return err
		}

		if snap.Status != lastStatus {
			printStatus("Status", "%s", snap.Status)
			lastStatus = snap.Status
		}

		switch snap.Status {
		case "completed":
			if snap.Result != nil {
				fmt.Println(snap.Result.Context)
			}
			printSuccess("Exploration completed")
			return nil
		case "failed":
			return fmt.Errorf("exploration failed: %s", snap.Error)
		case "cancelled":
			return fmt.Errorf("exploration was cancelled")
		}

		time.Sleep(2 * time.Second)
	}
}

func init() {
	exploreCmd.Flags().String("callback-url", "", "webhook URL to receive progress events")
	exploreCmd.Flags().Bool("wait", false, "block until the job reaches a terminal state")
}

// --- jobs ---

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage exploration jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent exploration jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(fmt.Sprintf("/jobs?limit=%d", limit))
		if err != nil {
			return err
		}

		var jobs []struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			CreatedAt string `json:"createdAt"`
		}
		if err := decodeJSON(resp, &jobs); err != nil {
			return err
		}

		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}

		for _, j := range jobs {
			fmt.Printf("%s  %-11s  %s\n",
				colorize(colorCyan, j.ID[:8]),
				j.Status,
				j.CreatedAt,
			)
		}
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single exploration job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/jobs/" + args[0])
		if err != nil {
			return err
		}

		var job any
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func init() {
	jobsListCmd.Flags().Int("limit", 20, "maximum number of jobs to list")
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
}

// --- cancel ---

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a running exploration job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete("/jobs/" + args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Cancelled job %s", args[0])
		return nil
	},
}

// --- legs ---

var legsCmd = &cobra.Command{
	Use:   "legs",
	Short: "List documented exploration legs",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		path, _ := cmd.Flags().GetString("path")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		query := ""
		if status != "" {
			query += "&status=" + strings.ToUpper(status)
		}
		if path != "" {
			query += "&path=" + path
		}
		if query != "" {
			query = "?" + query[1:]
		}

		resp, err := client.get("/legs" + query)
		if err != nil {
			return err
		}

		var legs []struct {
			LegNumber    int    `json:"legNumber"`
			Path         string `json:"path"`
			Status       string `json:"status"`
			FinalOutcome string `json:"finalOutcome"`
		}
		if err := decodeJSON(resp, &legs); err != nil {
			return err
		}

		if len(legs) == 0 {
			fmt.Println("No legs found.")
			return nil
		}

		for _, leg := range legs {
			outcome := leg.FinalOutcome
			if len(outcome) > 60 {
				outcome = outcome[:60] + "..."
			}
			fmt.Printf("%s  %-12s  %-11s  %s\n",
				colorize(colorCyan, fmt.Sprintf("#%03d", leg.LegNumber)),
				leg.Path,
				leg.Status,
				outcome,
			)
		}
		return nil
	},
}

func init() {
	legsCmd.Flags().String("status", "", "filter by status (COMPLETED, IN_PROGRESS, FAILED)")
	legsCmd.Flags().String("path", "", "filter by exact DTMF path, e.g. 1-2")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
