package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/store"
	"github.com/clubroster/roster/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export <path>",
	GroupID: "advanced",
	Short:   "Write the local dataset to a JSON file",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		backup, _ := cmd.Flags().GetBool("backup")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		st := openStore()
		defer st.Close()

		result, err := store.Export(args[0], st.Load(cmd.Context()), store.ExportOptions{
			Backup: backup,
			DryRun: dryRun,
		})
		exitOn(err, "exporting")

		if dryRun {
			fmt.Printf("%s Would write %d bytes to %s\n", ui.RenderAccent("•"), result.Bytes, result.Path)
		} else {
			fmt.Printf("%s Exported to %s (%d bytes)\n", ui.RenderPass("✓"), result.Path, result.Bytes)
		}
		if result.BackupCreated != "" {
			fmt.Printf("  Previous file kept at %s\n", result.BackupCreated)
		}
		fmt.Printf("  %d students, %d teachers, %d committee, %d attendance, %d activities, %d plan lines\n",
			result.Stats.Students, result.Stats.Teachers, result.Stats.Committee,
			result.Stats.Attendance, result.Stats.Activities, result.Stats.Plans)
	},
}

var importCmd = &cobra.Command{
	Use:     "import <path>",
	GroupID: "advanced",
	Short:   "Replace local records with an exported file",
	Long: `Replace every collection and the settings with those from an export.
The import is a regular change: it gets a new version and is pushed
like any other edit.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")

		ds, err := store.ReadExport(args[0])
		exitOn(err, "reading import")
		exitOn(ds.Validate(), "validating import")

		if !yes {
			stats := ds.Stats()
			ok, err := ui.Confirm("Replace local data?",
				fmt.Sprintf("%s holds %d students and %d attendance sheets.", args[0], stats.Students, stats.Attendance))
			exitOn(err, "confirming")
			if !ok {
				fmt.Println("Cancelled")
				return
			}
		}

		s := openSession(cmd.Context())
		defer s.close()

		exitOn(s.ctrl.UpdateContext(cmd.Context(), app.PatchFromDataset(ds)), "importing")
		fmt.Printf("%s Imported %s as version %d\n", ui.RenderPass("✓"), args[0], s.ctrl.Snapshot().LastUpdated)
	},
}

func init() {
	exportCmd.Flags().Bool("backup", false, "Keep a timestamped copy of an existing file")
	exportCmd.Flags().Bool("dry-run", false, "Report what would be written")
	importCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
