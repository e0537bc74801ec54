package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/routelab-net/routelab/pkg/gns3"
	"github.com/routelab-net/routelab/pkg/transport"
	"github.com/routelab-net/routelab/pkg/util"
)

var captureOutDir string

var captureCmd = &cobra.Command{
	Use:   "capture <router>...",
	Short: "Capture running configurations from lab routers",
	Long: `Capture connects to each router's GNS3 console, reads the running
configuration, and writes it to <out>/<hostname>_config.txt. When a
console is unreachable the dynamips startup-config on the server's disk
is used instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVarP(&captureOutDir, "out", "o", "captures", "Output directory")
}

func runCapture(cmd *cobra.Command, args []string) error {
	client, err := openProject()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(captureOutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, hostname := range args {
		path, err := captureRouter(client, hostname)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
	}
	return nil
}

// captureRouter captures one router's configuration over its console,
// falling back to the on-disk startup-config when the console cannot be
// reached. The fallback only works when the CLI runs on the GNS3 server
// host.
func captureRouter(client *gns3.Client, hostname string) (string, error) {
	console, dialErr := openConsole(client, hostname)
	if dialErr == nil {
		defer console.Close()
		return transport.CaptureToFile(console, captureOutDir, hostname)
	}

	src, err := client.ConfigPath(hostname)
	if err != nil {
		return "", dialErr
	}
	util.Warnf("console for %s unreachable (%v), reading startup-config", hostname, dialErr)
	text, err := os.ReadFile(src)
	if err != nil {
		return "", errors.Join(dialErr, err)
	}
	path := filepath.Join(captureOutDir, hostname+"_config.txt")
	if err := os.WriteFile(path, text, 0o644); err != nil {
		return "", fmt.Errorf("writing capture for %s: %w", hostname, err)
	}
	return path, nil
}
