package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a read-only SQL query against the registry",
	Long: `Run an arbitrary read-only SQL query against the registry database.

Results are printed as a table by default, or as JSON objects keyed by
column name with --json.

Examples:
  # All runs that errored
  simtrack query "SELECT id, pid FROM run WHERE latest_status = 'error'"

  # Count runs per status
  simtrack query "SELECT latest_status, COUNT(*) FROM run GROUP BY latest_status"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().Bool("json", false, "Emit rows as JSON objects")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, _, cleanup, err := openRegistry(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := reg.Query(ctx, args[0])
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, row := range result.Rows {
			obj := make(map[string]any, len(result.Columns))
			for i, col := range result.Columns {
				obj[col] = row[i]
			}
			if err := enc.Encode(obj); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(result.Columns, "\t")))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "-"
				continue
			}
			cells[i] = fmt.Sprintf("%v", v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}
