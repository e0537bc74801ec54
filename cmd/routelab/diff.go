package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/routelab-net/routelab/pkg/confdiff"
	"github.com/routelab-net/routelab/pkg/confparse"
	"github.com/routelab-net/routelab/pkg/intent"
	"github.com/routelab-net/routelab/pkg/synth"
)

var (
	diffHTMLPath string
	diffCommands bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare configurations structurally",
	Long: `Diff compares two configurations as section trees and reports added,
removed, and modified sections. With --commands it prints the command
sequence that converges the first configuration onto the second
(additive only; removals are reported but never projected).`,
}

var diffFilesCmd = &cobra.Command{
	Use:   "files <from-config> <to-config>",
	Short: "Compare two configuration files",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiffFiles,
}

var diffRunningCmd = &cobra.Command{
	Use:   "running <router-a> <router-b>",
	Short: "Compare the running configurations of two lab routers",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiffRunning,
}

var diffIntentCmd = &cobra.Command{
	Use:   "intent <from-intent> <to-intent>",
	Short: "Compare the configurations two intent files synthesize",
	Long: `Synthesizes both intent files and diffs each router's configuration.
HTML output is not supported in this mode; use files mode per router.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiffIntent,
}

func init() {
	diffCmd.PersistentFlags().StringVar(&diffHTMLPath, "html", "", "Write a color-coded HTML report to this path")
	diffCmd.PersistentFlags().BoolVar(&diffCommands, "commands", false, "Print replayable CLI commands instead of a report")
	diffCmd.AddCommand(diffFilesCmd, diffRunningCmd, diffIntentCmd)
}

// parseSide parses one comparison side, naming the side on failure so a
// bad file does not mask the state of the other.
func parseSide(name, text string) ([]*confparse.Section, error) {
	sections, err := confparse.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return sections, nil
}

// emitDiff writes the comparison outcome per the output flags.
func emitDiff(result *confdiff.Result, fromName, toName string) error {
	if diffCommands {
		for _, cmd := range confdiff.Project(result) {
			fmt.Println(cmd)
		}
		return nil
	}
	if diffHTMLPath != "" {
		html, err := confdiff.HTMLReport(result, fromName, toName)
		if err != nil {
			return err
		}
		if err := os.WriteFile(diffHTMLPath, []byte(html), 0o644); err != nil {
			return fmt.Errorf("writing HTML report: %w", err)
		}
		fmt.Printf("wrote %s\n", diffHTMLPath)
		return nil
	}
	fmt.Print(confdiff.TextReport(result))
	return nil
}

func runDiffFiles(cmd *cobra.Command, args []string) error {
	fromText, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	toText, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}

	from, fromErr := parseSide(args[0], string(fromText))
	to, toErr := parseSide(args[1], string(toText))
	if err := errors.Join(fromErr, toErr); err != nil {
		return err
	}
	return emitDiff(confdiff.Compare(from, to), args[0], args[1])
}

func runDiffRunning(cmd *cobra.Command, args []string) error {
	client, err := openProject()
	if err != nil {
		return err
	}

	capture := func(hostname string) (string, error) {
		console, err := openConsole(client, hostname)
		if err != nil {
			return "", err
		}
		defer console.Close()
		return console.Capture()
	}

	fromText, err := capture(args[0])
	if err != nil {
		return err
	}
	toText, err := capture(args[1])
	if err != nil {
		return err
	}

	from, fromErr := parseSide(args[0], fromText)
	to, toErr := parseSide(args[1], toText)
	if err := errors.Join(fromErr, toErr); err != nil {
		return err
	}
	return emitDiff(confdiff.Compare(from, to), args[0], args[1])
}

func runDiffIntent(cmd *cobra.Command, args []string) error {
	if diffHTMLPath != "" {
		return fmt.Errorf("--html is not supported in intent mode")
	}

	synthesizeAll := func(path string) (*synth.Result, error) {
		model, err := intent.Load(path)
		if err != nil {
			return nil, err
		}
		return synth.Synthesize(model)
	}

	from, err := synthesizeAll(args[0])
	if err != nil {
		return err
	}
	to, err := synthesizeAll(args[1])
	if err != nil {
		return err
	}

	hostnames := make(map[string]bool)
	for hostname := range from.Configs {
		hostnames[hostname] = true
	}
	for hostname := range to.Configs {
		hostnames[hostname] = true
	}
	ordered := make([]string, 0, len(hostnames))
	for hostname := range hostnames {
		ordered = append(ordered, hostname)
	}
	sort.Strings(ordered)

	for _, hostname := range ordered {
		fromSections, fromErr := parseSide(args[0], from.Configs[hostname])
		toSections, toErr := parseSide(args[1], to.Configs[hostname])
		if err := errors.Join(fromErr, toErr); err != nil {
			return fmt.Errorf("router %s: %w", hostname, err)
		}
		result := confdiff.Compare(fromSections, toSections)
		if result.IsEmpty() && !diffCommands {
			continue
		}
		fmt.Printf("=== %s ===\n", hostname)
		if err := emitDiff(result, args[0], args[1]); err != nil {
			return err
		}
	}
	return nil
}
