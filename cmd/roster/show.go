package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var showCmd = &cobra.Command{
	Use:     "show",
	GroupID: "records",
	Short:   "Print the local dataset",
	Long: `Print the dataset as stored locally, as JSON (default) or YAML.

--section limits the output to one top-level key, e.g. students,
committee or settings.`,
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		section, _ := cmd.Flags().GetString("section")

		st := openStore()
		defer st.Close()

		raw, err := json.Marshal(st.Load(cmd.Context()))
		exitOn(err, "encoding dataset")

		// Round-trip through a generic value so YAML uses the JSON keys.
		var doc map[string]any
		exitOn(json.Unmarshal(raw, &doc), "decoding dataset")

		var out any = doc
		if section != "" {
			v, ok := doc[section]
			if !ok {
				keys := make([]string, 0, len(doc))
				for k := range doc {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				fmt.Fprintf(os.Stderr, "Error: unknown section %q (have: %s)\n", section, strings.Join(keys, ", "))
				exit(1)
			}
			out = v
		}

		switch format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			exitOn(enc.Encode(out), "writing JSON")
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			exitOn(enc.Encode(out), "writing YAML")
			exitOn(enc.Close(), "writing YAML")
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown format %q (want json or yaml)\n", format)
			exit(1)
		}
	},
}

func init() {
	showCmd.Flags().StringP("format", "o", "json", "Output format: json or yaml")
	showCmd.Flags().StringP("section", "s", "", "Only print this top-level key")
	rootCmd.AddCommand(showCmd)
}
