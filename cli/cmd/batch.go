package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clearline-systems/clearline-engine/cli/internal/client"
	"github.com/clearline-systems/clearline-engine/cli/pkg/output"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Submit and inspect report batches",
}

var batchSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a batch envelope",
	Long:  "Submit a JSON batch envelope file to the engine and print the result summary.",
	Example: `  cline batch submit --file batch.json
  cline batch submit --file batch.json --kind financial_report --source acme`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		var envelope client.BatchEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return fmt.Errorf("failed to parse %s: %w", file, err)
		}

		// Flags patch envelope fields, handy for bare record files.
		if v, _ := cmd.Flags().GetString("batch-id"); v != "" {
			envelope.BatchID = v
		}
		if envelope.BatchID == "" {
			envelope.BatchID = uuid.New().String()
		}
		if v, _ := cmd.Flags().GetString("source"); v != "" {
			envelope.SourceID = v
		}
		if v, _ := cmd.Flags().GetString("kind"); v != "" {
			envelope.Schema.Kind = v
		}
		if v, _ := cmd.Flags().GetInt("schema-version"); v != 0 {
			envelope.Schema.Version = v
		}

		c := client.New(engineURL(cmd), apiToken(cmd))
		result, err := c.SubmitBatch(cmd.Context(), &envelope)
		if err != nil {
			return err
		}

		if outputFormat(cmd) == "json" {
			return output.JSON(result)
		}
		output.Success("Batch %s processed", result.BatchID)
		printResult(result)
		return nil
	},
}

var batchGetCmd = &cobra.Command{
	Use:   "get <batch-id>",
	Short: "Fetch a stored batch result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(engineURL(cmd), apiToken(cmd))
		result, err := c.GetBatchResult(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputFormat(cmd) == "json" {
			return output.JSON(result)
		}
		printResult(result)
		return nil
	},
}

var batchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent batch results",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		c := client.New(engineURL(cmd), apiToken(cmd))
		results, err := c.ListBatchResults(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if outputFormat(cmd) == "json" {
			return output.JSON(results)
		}
		table := output.NewTable("BATCH", "SOURCE", "KIND", "INPUT", "CLEAN", "QUARANTINED", "STARTED")
		for _, r := range results {
			table.AddRow(r.BatchID, r.SourceID, r.Kind,
				strconv.Itoa(r.Input), strconv.Itoa(r.Clean), strconv.Itoa(r.Quarantined),
				r.StartedAt.Local().Format(time.RFC3339))
		}
		table.Render()
		return nil
	},
}

func printResult(r *client.BatchResult) {
	output.Info("  source: %s  kind: %s@v%d", r.SourceID, r.Kind, r.SchemaVersion)
	output.Info("  input: %d  clean: %d  quarantined: %d  deduplicated: %d",
		r.Input, r.Clean, r.Quarantined, r.Deduplicated)
	output.Info("  duration: %dms", r.DurationMS)
	if len(r.RuleFailures) > 0 {
		rules := make([]string, 0, len(r.RuleFailures))
		for rule := range r.RuleFailures {
			rules = append(rules, rule)
		}
		sort.Strings(rules)
		output.Warn("  rule failures:")
		for _, rule := range rules {
			output.Warn("    %s: %d", rule, r.RuleFailures[rule])
		}
	}
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchSubmitCmd)
	batchCmd.AddCommand(batchGetCmd)
	batchCmd.AddCommand(batchListCmd)

	batchSubmitCmd.Flags().StringP("file", "f", "", "batch envelope JSON file")
	batchSubmitCmd.Flags().String("batch-id", "", "override batch id")
	batchSubmitCmd.Flags().String("source", "", "override source id")
	batchSubmitCmd.Flags().String("kind", "", "override schema kind")
	batchSubmitCmd.Flags().Int("schema-version", 0, "schema version (0 = latest)")

	batchListCmd.Flags().Int("limit", 20, "maximum results")
}
