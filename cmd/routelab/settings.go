package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/routelab-net/routelab/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent CLI defaults",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a default (server, project, capture-dir)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return err
		}
		switch args[0] {
		case "server":
			s.DefaultServer = args[1]
		case "project":
			s.DefaultProject = args[1]
		case "capture-dir":
			s.CaptureDir = args[1]
		default:
			return fmt.Errorf("unknown settings key %q", args[0])
		}
		return s.Save()
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		s.Clear()
		return s.Save()
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsClearCmd)
}

// applySettings fills unset context flags from the settings file.
func applySettings() {
	s, err := settings.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load settings: %v\n", err)
		return
	}
	if !rootCmd.PersistentFlags().Changed("server") && s.DefaultServer != "" {
		serverURL = s.DefaultServer
	}
	if projectName == "" {
		projectName = s.DefaultProject
	}
	if !captureCmd.Flags().Changed("out") {
		captureOutDir = s.GetCaptureDir()
	}
}
