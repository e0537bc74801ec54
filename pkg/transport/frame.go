package transport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/routelab-net/routelab/pkg/util"
)

// Frame wraps bare configuration commands with session framing: enter
// configuration mode, replay, leave, persist. The projector and renderer
// both emit unframed commands; this is the only place framing is added.
func Frame(cmds []string) []string {
	framed := make([]string, 0, len(cmds)+4)
	framed = append(framed, "enable", "configure terminal")
	framed = append(framed, cmds...)
	return append(framed, "end", "write memory")
}

// CaptureToFile captures a device's running configuration into
// <dir>/<hostname>_config.txt.
func CaptureToFile(c Console, dir, hostname string) (string, error) {
	text, err := c.Capture()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, hostname+"_config.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("writing capture for %s: %w", hostname, err)
	}
	return path, nil
}

// Batch is one router's framed command sequence.
type Batch struct {
	Hostname string
	Commands []string
}

// DeployAll pushes batches concurrently, one goroutine per router.
// Ordering within a router stays serial; failures are collected and the
// remaining routers still deploy.
func DeployAll(batches []Batch, open func(hostname string) (Console, error)) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, batch := range batches {
		wg.Add(1)
		go func(batch Batch) {
			defer wg.Done()
			console, err := open(batch.Hostname)
			if err != nil {
				fail(err)
				return
			}
			defer console.Close()
			if err := console.Run(batch.Commands); err != nil {
				fail(fmt.Errorf("deploying to %s: %w", batch.Hostname, err))
				return
			}
			util.Logger.WithField("router", batch.Hostname).
				Infof("deployed %d commands", len(batch.Commands))
		}(batch)
	}
	wg.Wait()

	return errors.Join(errs...)
}
