package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/agentic-research/sitegraph/api"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var listJSON bool

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the schema types the catalog can render",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cfg, log, false)
		if err != nil {
			return err
		}
		defer func() { _ = e.Close() }()

		types := e.Types()
		out := cmd.OutOrStdout()
		if listJSON {
			return writeJSON(out, types)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "TYPE\tFIELDS\tREQUIRED")
		for _, t := range types {
			total, required := countFields(t.Fields)
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\n", t.Type, total, required)
		}
		return tw.Flush()
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the rule tokens usable in show_on and not_show_on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cfg, log, false)
		if err != nil {
			return err
		}
		defer func() { _ = e.Close() }()

		groups := e.RuleOptions()
		out := cmd.OutOrStdout()
		if listJSON {
			return writeJSON(out, groups)
		}
		for _, g := range groups {
			_, _ = fmt.Fprintf(out, "%s\n", g.Label)
			for _, o := range g.Options {
				_, _ = fmt.Fprintf(out, "  %-36s %s\n", o.Value, o.Label)
			}
		}
		return nil
	},
}

// countFields counts emitted fields, descending into groups.
func countFields(fields []api.FieldSpec) (total, required int) {
	for _, f := range fields {
		if f.Kind == api.KindTitle {
			continue
		}
		total++
		if f.Required {
			required++
		}
		t, r := countFields(f.Fields)
		total += t
		required += r
	}
	return total, required
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	for _, c := range []*cobra.Command{typesCmd, rulesCmd} {
		c.Flags().BoolVar(&listJSON, "json", false, "Print JSON")
		rootCmd.AddCommand(c)
	}
}
