package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/ppiankov/industria/internal/model"
	"github.com/spf13/cobra"
)

// industriesCmd represents the industries command
var industriesCmd = &cobra.Command{
	Use:   "industries",
	Short: "Inspect the industry rule files",
	Long: `Inspect the industry rule files in the rules directory.

The rules directory holds main_config.yaml plus one <id>.yaml file per
industry. Set it with --rules-dir, rules.dir in the config file, or
INDUSTRIA_RULES_DIR.`,
}

var industriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the enabled industries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		defs, err := a.loader.LoadAll(cmd.Context())
		if err != nil {
			return err
		}
		return printIndustries(cmd.OutOrStdout(), defs)
	},
}

var industriesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate main_config.yaml and every industry file",
	Long: `Validate parses and compiles every file in the rules directory and
reports each problem with the file it came from. The command fails when
any file is invalid.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		results, err := a.loader.ValidateAll()
		if err != nil {
			return err
		}

		failed := printValidation(cmd.OutOrStdout(), a.loader.Dir(), results)
		if failed > 0 {
			return fmt.Errorf("%d of %d rule files are invalid", failed, len(results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(industriesCmd)
	industriesCmd.AddCommand(industriesListCmd)
	industriesCmd.AddCommand(industriesValidateCmd)
}

// printIndustries lists definitions by priority, highest first
func printIndustries(w io.Writer, defs map[string]model.RuleSetDefinition) error {
	list := make([]model.RuleSetDefinition, 0, len(defs))
	for _, def := range defs {
		list = append(list, def)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority > list[j].Priority
		}
		return list[i].ID < list[j].ID
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRIORITY\tKEYWORDS\tHIGH VALUE\tEXCLUSIONS")
	for i := range list {
		def := &list[i]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
			def.ID, def.Name, def.Priority, def.KeywordCount(),
			len(def.HighValueKeywords), len(def.ExclusionKeywords))
	}
	return tw.Flush()
}

// printValidation writes one line per file and returns the failure count
func printValidation(w io.Writer, dir string, results map[string]error) int {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(w, "Validating rules in %s\n\n", dir)

	failed := 0
	for _, id := range ids {
		if err := results[id]; err != nil {
			failed++
			fmt.Fprintf(w, "  ✗ %s: %v\n", id, err)
			continue
		}
		fmt.Fprintf(w, "  ✓ %s\n", id)
	}

	fmt.Fprintf(w, "\n%d valid, %d invalid\n", len(ids)-failed, failed)
	return failed
}
