package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clubroster/roster/internal/club"
	"github.com/clubroster/roster/internal/schema"
	"github.com/clubroster/roster/internal/ui"
)

var studentCmd = &cobra.Command{
	Use:     "student",
	GroupID: "records",
	Short:   "Manage club members",
}

var studentAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a student",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		student := schema.Student{Name: args[0]}
		student.NIS, _ = cmd.Flags().GetString("nis")
		student.Class, _ = cmd.Flags().GetString("class")
		student.Gender, _ = cmd.Flags().GetString("gender")
		student.Phone, _ = cmd.Flags().GetString("phone")
		student.JoinedAt, _ = cmd.Flags().GetString("joined")

		added, err := club.NewRoster(s.ctrl).AddStudent(student)
		exitOn(err, "adding student")
		fmt.Printf("%s Added %s (%s)\n", ui.RenderPass("✓"), added.Name, ui.RenderMuted(added.ID))
	},
}

var studentListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List students, optionally filtered",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		students := club.NewRoster(s.ctrl).FindStudents(query)
		if len(students) == 0 {
			fmt.Println("No students")
			return
		}

		rows := make([][]string, 0, len(students))
		for _, st := range students {
			rows = append(rows, []string{st.ID, st.NIS, st.Name, st.Class, st.Gender, st.Phone})
		}
		fmt.Println(ui.Table([]string{"ID", "NIS", "Name", "Class", "Gender", "Phone"}, rows))
	},
}

var studentUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a student's details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		roster := club.NewRoster(s.ctrl)
		student, err := roster.Student(args[0])
		exitOn(err, "finding student")

		flags := cmd.Flags()
		for flag, field := range map[string]*string{
			"name":   &student.Name,
			"nis":    &student.NIS,
			"class":  &student.Class,
			"gender": &student.Gender,
			"phone":  &student.Phone,
			"joined": &student.JoinedAt,
		} {
			if flags.Changed(flag) {
				*field, _ = flags.GetString(flag)
			}
		}

		exitOn(roster.UpdateStudent(student), "updating student")
		fmt.Printf("%s Updated %s\n", ui.RenderPass("✓"), student.Name)
	},
}

var studentRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a student",
	Long: `Remove a student. Committee entries and attendance sheets that mention
the student are kept; the student is simply no longer shown in them.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		exitOn(club.NewRoster(s.ctrl).RemoveStudent(args[0]), "removing student")
		fmt.Printf("%s Removed %s\n", ui.RenderPass("✓"), args[0])
	},
}

var teacherCmd = &cobra.Command{
	Use:     "teacher",
	GroupID: "records",
	Short:   "Manage advisors and supervising teachers",
}

var teacherAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a teacher",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		teacher := schema.Teacher{Name: args[0]}
		teacher.NIP, _ = cmd.Flags().GetString("nip")
		teacher.Phone, _ = cmd.Flags().GetString("phone")
		teacher.Role, _ = cmd.Flags().GetString("role")

		added, err := club.NewRoster(s.ctrl).AddTeacher(teacher)
		exitOn(err, "adding teacher")
		fmt.Printf("%s Added %s (%s)\n", ui.RenderPass("✓"), added.Name, ui.RenderMuted(added.ID))
	},
}

var teacherListCmd = &cobra.Command{
	Use:   "list",
	Short: "List teachers",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		teachers := club.NewRoster(s.ctrl).Teachers()
		if len(teachers) == 0 {
			fmt.Println("No teachers")
			return
		}
		rows := make([][]string, 0, len(teachers))
		for _, t := range teachers {
			rows = append(rows, []string{t.ID, t.NIP, t.Name, t.Role, t.Phone})
		}
		fmt.Println(ui.Table([]string{"ID", "NIP", "Name", "Role", "Phone"}, rows))
	},
}

var teacherRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a teacher",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		if err := club.NewRoster(s.ctrl).RemoveTeacher(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error removing teacher: %v\n", err)
			exit(1)
		}
		fmt.Printf("%s Removed %s\n", ui.RenderPass("✓"), args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{studentAddCmd, studentUpdateCmd} {
		c.Flags().String("nis", "", "Student number")
		c.Flags().String("class", "", "Class, e.g. 7A")
		c.Flags().String("gender", "", "Gender (L/P or M/F)")
		c.Flags().String("phone", "", "Phone number")
		c.Flags().String("joined", "", "Join date (YYYY-MM-DD)")
	}
	studentUpdateCmd.Flags().String("name", "", "Full name")

	teacherAddCmd.Flags().String("nip", "", "Staff number")
	teacherAddCmd.Flags().String("phone", "", "Phone number")
	teacherAddCmd.Flags().String("role", "", "Role, e.g. advisor")

	studentCmd.AddCommand(studentAddCmd, studentListCmd, studentUpdateCmd, studentRemoveCmd)
	teacherCmd.AddCommand(teacherAddCmd, teacherListCmd, teacherRemoveCmd)
	rootCmd.AddCommand(studentCmd)
	rootCmd.AddCommand(teacherCmd)
}
