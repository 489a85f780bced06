package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/clubroster/roster/internal/loadtest"
	"github.com/clubroster/roster/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "advanced",
	Short:   "Measure local update latency under concurrent writers",
	Long: `Run concurrent writers against a scratch copy of the Local Store and
report per-update latency. The scratch store lives in a temporary
directory; your roster is not touched.

Each writer alternates between recording an attendance sheet and
changing a student's class. Afterwards every committed change is checked
for a distinct version.

Examples:
  roster bench
  roster bench --writers 20 --updates 50 --students 500
  roster bench --json`,
	Annotations: map[string]string{skipAuth: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		writers, _ := cmd.Flags().GetInt("writers")
		updates, _ := cmd.Flags().GetInt("updates")
		students, _ := cmd.Flags().GetInt("students")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		if writers <= 0 || updates <= 0 || students <= 0 {
			fmt.Fprintf(os.Stderr, "Error: --writers, --updates and --students must be positive\n")
			os.Exit(1)
		}

		dir, err := os.MkdirTemp("", "roster-bench-")
		exitOn(err, "creating scratch directory")

		f, err := loadtest.CreateFixture(filepath.Join(dir, "roster.db"), students)
		if err != nil {
			_ = os.RemoveAll(dir)
			exitOn(err, "creating fixture")
		}
		// Deferred calls are skipped by os.Exit, so every exit path below
		// goes through cleanup.
		cleanup := func() {
			_ = f.Close()
			_ = os.RemoveAll(dir)
		}

		if !jsonOutput {
			fmt.Printf("Configuration: %d writers, %d updates/writer, %d students\n\n", writers, updates, students)
		}

		start := time.Now()
		stats, err := f.RunConcurrentUpdates(writers, updates)
		if err != nil {
			cleanup()
			exitOn(err, "running updates")
		}
		elapsed := time.Since(start)
		verifyErr := f.VerifyVersions()
		commits := f.Commits()
		cleanup()

		if jsonOutput {
			out := map[string]interface{}{
				"writers":  writers,
				"updates":  stats.TotalUpdates,
				"errors":   stats.Errors,
				"elapsed":  elapsed.Milliseconds(),
				"per_sec":  float64(stats.TotalUpdates) / elapsed.Seconds(),
				"versions": verifyErr == nil,
				"latency": map[string]interface{}{
					"min_us":  stats.Min.Microseconds(),
					"p50_us":  stats.P50.Microseconds(),
					"mean_us": stats.Mean.Microseconds(),
					"p95_us":  stats.P95.Microseconds(),
					"p99_us":  stats.P99.Microseconds(),
					"max_us":  stats.Max.Microseconds(),
				},
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(out)
		} else {
			stats.Fprint(os.Stdout)
			fmt.Printf("\nThroughput: %.0f updates/s over %v\n", float64(stats.TotalUpdates)/elapsed.Seconds(), elapsed.Round(time.Millisecond))
			if verifyErr == nil {
				fmt.Printf("%s Versions distinct across %d commits\n", ui.RenderPass("✓"), commits)
			}
		}

		if verifyErr != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), verifyErr)
			os.Exit(1)
		}
		if stats.Errors > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	benchCmd.Flags().Int("writers", 10, "Number of concurrent writers")
	benchCmd.Flags().Int("updates", 20, "Updates per writer")
	benchCmd.Flags().Int("students", 200, "Students in the scratch roster")
	benchCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchCmd)
}
