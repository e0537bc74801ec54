// Routelab - Network Intent to IOS Configuration Tool
//
// A CLI tool for emulated MPLS/BGP labs that:
//   - Synthesizes per-router Cisco IOS configurations from a declarative
//     intent file (ASes, routers, links, VPN memberships)
//   - Diffs configurations (files, running devices, or two intent files)
//     and projects the diff into replayable CLI commands
//   - Captures running configurations from lab routers
//   - Deploys through GNS3 consoles, dry-run by default (-x to execute)
//
// Examples:
//
//	routelab generate intent.json --out configs          # Render configs
//	routelab generate intent.json --deploy -p mpls-lab -x
//	routelab diff files before.txt after.txt             # Structural diff
//	routelab diff files before.txt after.txt --commands  # Replay commands
//	routelab diff intent old.json new.json --html diff.html
//	routelab diff running PE1 P1 -p mpls-lab
//	routelab capture PE1 -p mpls-lab --out captures
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/routelab-net/routelab/pkg/gns3"
	"github.com/routelab-net/routelab/pkg/transport"
	"github.com/routelab-net/routelab/pkg/util"
	"github.com/routelab-net/routelab/pkg/version"
)

var (
	// Global option flags
	verbose     bool
	serverURL   string // -s, --server
	projectName string // -p, --project
	executeMode bool   // -x, set per command that mutates devices
	askPass     bool

	enablePassword string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "routelab",
	Short:             "Network intent to IOS configuration tool",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Routelab synthesizes Cisco IOS configurations from a declarative intent
file and diffs configurations into replayable command sequences.

Device-facing commands preview changes by default — use -x to execute.`,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		applySettings()
		util.SetLogOutput(cmd.ErrOrStderr())
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if askPass {
			fmt.Fprint(os.Stderr, "Enable password: ")
			pw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			enablePassword = string(pw)
		}
		return nil
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://127.0.0.1:3080", "GNS3 server URL")
	rootCmd.PersistentFlags().StringVarP(&projectName, "project", "p", "", "GNS3 project name")
	rootCmd.PersistentFlags().BoolVar(&askPass, "askpass", false, "Prompt for the enable password")

	rootCmd.AddCommand(generateCmd, diffCmd, captureCmd, settingsCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("routelab " + version.Info())
	},
}

// openProject connects to the GNS3 server and opens the named project.
func openProject() (*gns3.Client, error) {
	if projectName == "" {
		return nil, fmt.Errorf("no GNS3 project given (use -p)")
	}
	client := gns3.NewClient(serverURL)
	if err := client.OpenProject(projectName); err != nil {
		return nil, err
	}
	return client, nil
}

// openConsole resolves a router's console endpoint and dials it.
func openConsole(client *gns3.Client, hostname string) (transport.Console, error) {
	addr, err := client.ConsoleEndpoint(hostname)
	if err != nil {
		return nil, err
	}
	return transport.Dial(addr, hostname, transport.Options{EnablePassword: enablePassword})
}
