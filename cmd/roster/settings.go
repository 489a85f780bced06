package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clubroster/roster/internal/club"
	"github.com/clubroster/roster/internal/ui"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	GroupID: "sync",
	Short:   "Show or change the settings record",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd.Context())
		defer s.close()

		st := club.NewSettingsEditor(s.ctrl).Get()
		endpoint := st.EndpointURL
		if endpoint == "" {
			endpoint = ui.RenderMuted("(local only)")
		}

		rows := [][]string{
			{"Endpoint", endpoint},
			{"Auto-sync", fmt.Sprintf("%v", st.AutoSync)},
			{"School", st.SchoolName},
			{"Club", st.ClubName},
			{"Address", st.Address},
			{"Logo", st.LogoURL},
			{"Advisor", st.AdvisorName},
		}
		fmt.Println(ui.Table([]string{"Setting", "Value"}, rows))
	},
}

var settingsEndpointCmd = &cobra.Command{
	Use:   "endpoint [url]",
	Short: "Set the remote endpoint (no argument: go local-only)",
	Long: `Set the endpoint the dataset is mirrored to. The endpoint is tested
before it is saved unless --no-test is given. Without an argument the
device switches to local-only mode.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		noTest, _ := cmd.Flags().GetBool("no-test")
		autoSync, _ := cmd.Flags().GetBool("auto-sync")

		s := openSession(cmd.Context())
		defer s.close()

		url := ""
		if len(args) == 1 {
			url = args[0]
		}

		if url != "" && !noTest {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
			ok := s.ctrl.TestConnection(ctx, url)
			cancel()
			if !ok {
				fmt.Fprintf(os.Stderr, "%s Connection to %s failed; endpoint not saved (use --no-test to save anyway)\n", ui.RenderFail("✗"), url)
				exit(1)
			}
		}

		exitOn(club.NewSettingsEditor(s.ctrl).SetEndpoint(url, url != "" && autoSync), "saving endpoint")
		if url == "" {
			fmt.Printf("%s Local-only mode\n", ui.RenderPass("✓"))
			return
		}
		fmt.Printf("%s Endpoint set to %s\n", ui.RenderPass("✓"), url)
	},
}

var settingsAutoSyncCmd = &cobra.Command{
	Use:       "autosync <on|off>",
	Short:     "Turn automatic pushes on or off",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	Run: func(cmd *cobra.Command, args []string) {
		var on bool
		switch args[0] {
		case "on":
			on = true
		case "off":
		default:
			fmt.Fprintf(os.Stderr, "Error: expected on or off, got %q\n", args[0])
			exit(1)
		}

		s := openSession(cmd.Context())
		defer s.close()

		exitOn(club.NewSettingsEditor(s.ctrl).SetAutoSync(on), "saving auto-sync")
		fmt.Printf("%s Auto-sync %s\n", ui.RenderPass("✓"), args[0])
	},
}

var settingsIdentityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Set the school and club display details",
	Run: func(cmd *cobra.Command, args []string) {
		var id club.Identity
		id.SchoolName, _ = cmd.Flags().GetString("school")
		id.ClubName, _ = cmd.Flags().GetString("club")
		id.Address, _ = cmd.Flags().GetString("address")
		id.LogoURL, _ = cmd.Flags().GetString("logo")
		id.AdvisorName, _ = cmd.Flags().GetString("advisor")
		if id == (club.Identity{}) {
			fmt.Fprintf(os.Stderr, "Error: nothing to change\n")
			exit(1)
		}

		s := openSession(cmd.Context())
		defer s.close()

		exitOn(club.NewSettingsEditor(s.ctrl).SetIdentity(id), "saving identity")
		fmt.Printf("%s Identity updated\n", ui.RenderPass("✓"))
	},
}

func init() {
	settingsEndpointCmd.Flags().Bool("no-test", false, "Save without testing the connection")
	settingsEndpointCmd.Flags().Bool("auto-sync", true, "Push every change automatically")

	settingsIdentityCmd.Flags().String("school", "", "School name")
	settingsIdentityCmd.Flags().String("club", "", "Club name")
	settingsIdentityCmd.Flags().String("address", "", "School address")
	settingsIdentityCmd.Flags().String("logo", "", "Logo URL")
	settingsIdentityCmd.Flags().String("advisor", "", "Advisor name")

	settingsCmd.AddCommand(settingsEndpointCmd, settingsAutoSyncCmd, settingsIdentityCmd)
	rootCmd.AddCommand(settingsCmd)
}
