package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/tools"
)

func toolsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools [toolset]",
		Short: "List the tools offered to the model per mode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decls := make(map[string]domain.ToolDeclaration)
			for _, d := range tools.Declarations() {
				decls[d.Name] = d
			}

			sets := tools.Toolsets()
			if len(args) == 1 {
				var found []tools.Toolset
				for _, ts := range sets {
					if ts.Name == args[0] {
						found = append(found, ts)
					}
				}
				if len(found) == 0 {
					names := make([]string, len(sets))
					for i, ts := range sets {
						names[i] = ts.Name
					}
					return fmt.Errorf("unknown toolset %q (have %s)", args[0], strings.Join(names, ", "))
				}
				sets = found
			}

			out := cmd.OutOrStdout()
			if asJSON {
				payload := make(map[string][]domain.ToolDeclaration, len(sets))
				for _, ts := range sets {
					for _, name := range ts.Tools {
						payload[ts.Name] = append(payload[ts.Name], decls[name])
					}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, ts := range sets {
				fmt.Fprintf(w, "%s (%d tools)\n", ts.Name, len(ts.Tools))
				names := append([]string(nil), ts.Tools...)
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(w, "  %s\t%s\n", name, firstSentence(decls[name].Description))
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print full declarations as JSON")
	return cmd
}

func firstSentence(s string) string {
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}
