package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clearline-systems/clearline-engine/cli/internal/client"
	"github.com/clearline-systems/clearline-engine/cli/internal/lint"
	"github.com/clearline-systems/clearline-engine/cli/pkg/output"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and lint schema definitions",
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schema kinds registered on the engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(engineURL(cmd), apiToken(cmd))
		schemas, err := c.ListSchemas(cmd.Context())
		if err != nil {
			return err
		}
		if outputFormat(cmd) == "json" {
			return output.JSON(schemas)
		}
		table := output.NewTable("KIND", "VERSIONS")
		for _, s := range schemas {
			versions := make([]string, len(s.Versions))
			for i, v := range s.Versions {
				versions[i] = strconv.Itoa(v)
			}
			table.AddRow(s.Kind, strings.Join(versions, ", "))
		}
		table.Render()
		return nil
	},
}

var schemaLintCmd = &cobra.Command{
	Use:   "lint <dir>",
	Short: "Check schema documents before publishing",
	Long: `Structurally check every schema document in a directory: YAML syntax,
required keys, field types, rule kinds and predicates. Exits non-zero when
any document has problems.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := lint.Dir(args[0])
		if err != nil {
			return err
		}

		files := make([]string, 0, len(results))
		for name := range results {
			files = append(files, name)
		}
		sort.Strings(files)

		failed := 0
		for _, name := range files {
			errs := results[name]
			if len(errs) == 0 {
				output.Success("%s", name)
				continue
			}
			failed++
			output.Error("%s", name)
			for _, e := range errs {
				output.Warn("  %v", e)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed lint", failed, len(files))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaListCmd)
	schemaCmd.AddCommand(schemaLintCmd)
}
