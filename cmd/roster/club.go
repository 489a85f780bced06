package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clubroster/roster/internal/club"
	"github.com/clubroster/roster/internal/schema"
	"github.com/clubroster/roster/internal/ui"
)

var committeeCmd = &cobra.Command{
	Use:     "committee",
	GroupID: "records",
	Short:   "Manage the committee structure",
}

var committeeAssignCmd = &cobra.Command{
	Use:   "assign <student-id> <position>",
	Short: "Place a student in a committee position",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		period, _ := cmd.Flags().GetString("period")
		m, err := club.NewCommittee(s.ctrl).Assign(args[0], args[1], period)
		exitOn(err, "assigning committee position")
		fmt.Printf("%s Assigned %s (%s)\n", ui.RenderPass("✓"), m.Position, ui.RenderMuted(m.ID))
	},
}

var committeeListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the committee",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		committee := club.NewCommittee(s.ctrl)
		members := committee.Members()
		if len(members) == 0 {
			fmt.Println("No committee members")
		} else {
			rows := make([][]string, 0, len(members))
			for _, m := range members {
				rows = append(rows, []string{m.ID, m.Position, m.Student.Name, m.Student.Class, m.Period})
			}
			fmt.Println(ui.Table([]string{"ID", "Position", "Name", "Class", "Period"}, rows))
		}

		if dangling := committee.Dangling(); len(dangling) > 0 {
			fmt.Printf("%s %d entries refer to removed students\n", ui.RenderWarn("⚠"), len(dangling))
		}
	},
}

var committeeRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a committee entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		exitOn(club.NewCommittee(s.ctrl).Remove(args[0]), "removing committee entry")
		fmt.Printf("%s Removed %s\n", ui.RenderPass("✓"), args[0])
	},
}

var attendanceCmd = &cobra.Command{
	Use:     "attendance",
	GroupID: "records",
	Short:   "Record and review meeting attendance",
}

var attendanceRecordCmd = &cobra.Command{
	Use:   "record <student-id>...",
	Short: "Record who attended a meeting",
	Long: `Record a meeting's attendance. --date accepts YYYY-MM-DD or phrases like
"today", "yesterday" or "last friday" (default: today).`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		date, _ := cmd.Flags().GetString("date")
		topic, _ := cmd.Flags().GetString("topic")
		notes, _ := cmd.Flags().GetString("notes")

		a, err := club.NewAttendanceBook(s.ctrl).Record(date, topic, args, notes)
		exitOn(err, "recording attendance")
		fmt.Printf("%s Recorded %d present on %s\n", ui.RenderPass("✓"), len(a.Presents), a.Date)
	},
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance sheets, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		sheets := club.NewAttendanceBook(s.ctrl).Sheets()
		if len(sheets) == 0 {
			fmt.Println("No attendance recorded")
			return
		}
		rows := make([][]string, 0, len(sheets))
		for _, sh := range sheets {
			names := make([]string, 0, len(sh.Students))
			for _, st := range sh.Students {
				names = append(names, st.Name)
			}
			rows = append(rows, []string{sh.ID, sh.Date, sh.Topic, strconv.Itoa(len(names)), strings.Join(names, ", ")})
		}
		fmt.Println(ui.Table([]string{"ID", "Date", "Topic", "Present", "Names"}, rows))
	},
}

var attendanceRatesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Show each student's attendance rate",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		rates := club.NewAttendanceBook(s.ctrl).Rates()
		rows := make([][]string, 0, len(rates))
		for _, r := range rates {
			rows = append(rows, []string{
				r.Student.Name,
				r.Student.Class,
				fmt.Sprintf("%d/%d", r.Attended, r.Meetings),
				fmt.Sprintf("%.0f%%", r.Percent()),
			})
		}
		fmt.Println(ui.Table([]string{"Name", "Class", "Attended", "Rate"}, rows))
	},
}

var attendanceRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an attendance sheet",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		exitOn(club.NewAttendanceBook(s.ctrl).Remove(args[0]), "removing attendance")
		fmt.Printf("%s Removed %s\n", ui.RenderPass("✓"), args[0])
	},
}

var activityCmd = &cobra.Command{
	Use:     "activity",
	GroupID: "records",
	Short:   "Keep the activity log",
}

var activityAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Log an activity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		date, _ := cmd.Flags().GetString("date")
		desc, _ := cmd.Flags().GetString("description")
		location, _ := cmd.Flags().GetString("location")

		a, err := club.NewActivityLog(s.ctrl).Add(date, args[0], desc, location)
		exitOn(err, "adding activity")
		fmt.Printf("%s Logged %s on %s\n", ui.RenderPass("✓"), a.Title, a.Date)
	},
}

var activityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List activities, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		activities := club.NewActivityLog(s.ctrl).List()
		if len(activities) == 0 {
			fmt.Println("No activities")
			return
		}
		rows := make([][]string, 0, len(activities))
		for _, a := range activities {
			rows = append(rows, []string{a.ID, a.Date, a.Title, a.Location})
		}
		fmt.Println(ui.Table([]string{"ID", "Date", "Title", "Location"}, rows))
	},
}

var activityRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an activity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		exitOn(club.NewActivityLog(s.ctrl).Remove(args[0]), "removing activity")
		fmt.Printf("%s Removed %s\n", ui.RenderPass("✓"), args[0])
	},
}

var planCmd = &cobra.Command{
	Use:     "plan",
	GroupID: "records",
	Short:   "Maintain the annual programme plan",
}

var planAddCmd = &cobra.Command{
	Use:   "add <month> <program>",
	Short: "Add a programme line (month 1-12)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		month, err := strconv.Atoi(args[0])
		exitOn(err, "parsing month")

		s := openSession(cmd.Context())
		defer s.close()

		plan := schema.AnnualPlan{Month: month, Program: args[1]}
		plan.Target, _ = cmd.Flags().GetString("target")
		plan.Budget, _ = cmd.Flags().GetInt64("budget")

		added, err := club.NewAnnualPlan(s.ctrl).Add(plan)
		exitOn(err, "adding plan")
		fmt.Printf("%s Planned %s for month %d (%s)\n", ui.RenderPass("✓"), added.Program, added.Month, ui.RenderMuted(added.ID))
	},
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the annual plan",
	Run: func(cmd *cobra.Command, args []string) {
		byMonth, _ := cmd.Flags().GetBool("by-month")

		s := openSession(cmd.Context())
		defer s.close()

		plan := club.NewAnnualPlan(s.ctrl)
		lines := plan.List(byMonth)
		if len(lines) == 0 {
			fmt.Println("No plan lines")
			return
		}
		rows := make([][]string, 0, len(lines))
		for _, p := range lines {
			rows = append(rows, []string{p.ID, strconv.Itoa(p.Month), p.Program, p.Target, strconv.FormatInt(p.Budget, 10), ui.StatusBadge(p.Status)})
		}
		fmt.Println(ui.Table([]string{"ID", "Month", "Program", "Target", "Budget", "Status"}, rows))
		fmt.Printf("Active budget: %d\n", plan.Budget())
	},
}

var planStatusCmd = &cobra.Command{
	Use:   "status <id> <planned|done|cancelled>",
	Short: "Change a programme line's status",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		exitOn(club.NewAnnualPlan(s.ctrl).SetStatus(args[0], args[1]), "updating plan")
		fmt.Printf("%s %s is now %s\n", ui.RenderPass("✓"), args[0], args[1])
	},
}

var planRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a programme line",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		exitOn(club.NewAnnualPlan(s.ctrl).Remove(args[0]), "removing plan")
		fmt.Printf("%s Removed %s\n", ui.RenderPass("✓"), args[0])
	},
}

func init() {
	committeeAssignCmd.Flags().String("period", "", "Term, e.g. 2024/2025")

	for _, c := range []*cobra.Command{attendanceRecordCmd, activityAddCmd} {
		c.Flags().StringP("date", "d", "", "Date (YYYY-MM-DD or e.g. \"yesterday\")")
	}
	attendanceRecordCmd.Flags().StringP("topic", "t", "", "Meeting topic")
	attendanceRecordCmd.Flags().String("notes", "", "Notes")
	activityAddCmd.Flags().String("description", "", "Description")
	activityAddCmd.Flags().StringP("location", "l", "", "Location")

	planAddCmd.Flags().String("target", "", "Target audience or goal")
	planAddCmd.Flags().Int64("budget", 0, "Budget")
	planListCmd.Flags().Bool("by-month", false, "Sort by month")

	committeeCmd.AddCommand(committeeAssignCmd, committeeListCmd, committeeRemoveCmd)
	attendanceCmd.AddCommand(attendanceRecordCmd, attendanceListCmd, attendanceRatesCmd, attendanceRemoveCmd)
	activityCmd.AddCommand(activityAddCmd, activityListCmd, activityRemoveCmd)
	planCmd.AddCommand(planAddCmd, planListCmd, planStatusCmd, planRemoveCmd)

	rootCmd.AddCommand(committeeCmd)
	rootCmd.AddCommand(attendanceCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(planCmd)
}
