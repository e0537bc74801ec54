package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/routelab-net/routelab/pkg/confdiff"
	"github.com/routelab-net/routelab/pkg/confparse"
	"github.com/routelab-net/routelab/pkg/intent"
	"github.com/routelab-net/routelab/pkg/synth"
	"github.com/routelab-net/routelab/pkg/transport"
	"github.com/routelab-net/routelab/pkg/util"
)

var (
	generateOutDir string
	deployMode     bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <intent-file>",
	Short: "Synthesize per-router configurations from an intent file",
	Long: `Generate validates the intent file, allocates addresses and interfaces,
and renders one configuration file per router into the output directory.

With --deploy the rendered configurations are replayed over each router's
GNS3 console. Deployment previews by default; add -x to execute.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutDir, "out", "o", "configs", "Output directory")
	generateCmd.Flags().BoolVar(&deployMode, "deploy", false, "Replay configurations over GNS3 consoles")
	generateCmd.Flags().BoolVarP(&executeMode, "execute", "x", false, "Execute deployment (default is dry-run)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	model, err := intent.Load(args[0])
	if err != nil {
		return err
	}
	result, err := synth.Synthesize(model)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(generateOutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	for _, hostname := range result.Order {
		path := filepath.Join(generateOutDir, hostname+"_config.txt")
		if err := os.WriteFile(path, []byte(result.Configs[hostname]), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Printf("wrote %s\n", path)
	}

	if !deployMode {
		return nil
	}
	return deploy(model, result)
}

// replayCommands turns rendered configuration text into the command
// sequence that builds it from an empty configuration.
func replayCommands(text string) ([]string, error) {
	sections, err := confparse.Parse(text)
	if err != nil {
		return nil, err
	}
	return confdiff.Project(confdiff.Compare(nil, sections)), nil
}

func deploy(model *intent.Model, result *synth.Result) error {
	batches := make([]transport.Batch, 0, len(result.Order))
	for _, hostname := range result.Order {
		cmds, err := replayCommands(result.Configs[hostname])
		if err != nil {
			return fmt.Errorf("router %s: %w", hostname, err)
		}
		batches = append(batches, transport.Batch{
			Hostname: hostname,
			Commands: transport.Frame(cmds),
		})
	}

	if !executeMode {
		for _, batch := range batches {
			fmt.Printf("[dry-run] %s: would send %d commands\n", batch.Hostname, len(batch.Commands))
		}
		fmt.Println("dry-run complete; re-run with -x to deploy")
		return nil
	}

	client, err := openProject()
	if err != nil {
		return err
	}
	for _, r := range model.Routers {
		if r.Position.X == 0 && r.Position.Y == 0 {
			continue
		}
		if err := client.UpdatePosition(r.Hostname, r.Position.X, r.Position.Y); err != nil {
			util.Warnf("positioning %s: %v", r.Hostname, err)
		}
	}

	return transport.DeployAll(batches, func(hostname string) (transport.Console, error) {
		return openConsole(client, hostname)
	})
}
