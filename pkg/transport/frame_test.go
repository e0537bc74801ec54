package transport

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

// ============================================================================
// Framing Tests
// ============================================================================

func TestFrame(t *testing.T) {
	got := Frame([]string{"router bgp 100", "neighbor 10.1.1.2 remote-as 100", "exit"})
	want := []string{
		"enable",
		"configure terminal",
		"router bgp 100",
		"neighbor 10.1.1.2 remote-as 100",
		"exit",
		"end",
		"write memory",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Frame() = %v, want %v", got, want)
	}
}

func TestFrame_Empty(t *testing.T) {
	got := Frame(nil)
	want := []string{"enable", "configure terminal", "end", "write memory"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Frame(nil) = %v, want %v", got, want)
	}
}

// ============================================================================
// Capture Cleanup Tests
// ============================================================================

func TestCleanCapture(t *testing.T) {
	raw := "show running-config\r\n" +
		"Building configuration...\r\n" +
		"\r\n" +
		"Current configuration : 1234 bytes\r\n" +
		"hostname R1\r\n" +
		"ip cef\r\n" +
		"end\r\n" +
		"R1#"
	got := cleanCapture(raw, "show running-config")
	want := "hostname R1\nip cef\nend\n"
	if got != want {
		t.Errorf("cleanCapture() = %q, want %q", got, want)
	}
}

func TestCleanCapture_KeepsBlankInteriorLines(t *testing.T) {
	raw := "show running-config\r\nhostname R1\r\n\r\nip cef\r\nR1#"
	got := cleanCapture(raw, "show running-config")
	if got != "hostname R1\n\nip cef\n" {
		t.Errorf("cleanCapture() = %q", got)
	}
}

// ============================================================================
// Deploy Tests
// ============================================================================

// fakeConsole records commands for DeployAll tests.
type fakeConsole struct {
	mu   sync.Mutex
	runs [][]string
	fail bool
}

func (f *fakeConsole) Run(cmds []string) error {
	if f.fail {
		return errors.New("device unreachable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, cmds)
	return nil
}

func (f *fakeConsole) Capture() (string, error) { return "hostname fake\n", nil }
func (f *fakeConsole) Close() error             { return nil }

func TestDeployAll(t *testing.T) {
	consoles := map[string]*fakeConsole{
		"R1": {},
		"R2": {},
	}
	batches := []Batch{
		{Hostname: "R1", Commands: []string{"hostname R1"}},
		{Hostname: "R2", Commands: []string{"hostname R2"}},
	}

	err := DeployAll(batches, func(hostname string) (Console, error) {
		return consoles[hostname], nil
	})
	if err != nil {
		t.Fatalf("DeployAll() error = %v", err)
	}
	for hostname, console := range consoles {
		if len(console.runs) != 1 {
			t.Errorf("%s: run count = %d, want 1", hostname, len(console.runs))
		}
	}
}

func TestDeployAll_PartialFailure(t *testing.T) {
	healthy := &fakeConsole{}
	broken := &fakeConsole{fail: true}
	batches := []Batch{
		{Hostname: "R1", Commands: []string{"hostname R1"}},
		{Hostname: "R2", Commands: []string{"hostname R2"}},
	}

	err := DeployAll(batches, func(hostname string) (Console, error) {
		if hostname == "R2" {
			return broken, nil
		}
		return healthy, nil
	})
	if err == nil {
		t.Fatal("DeployAll() expected error from broken console")
	}
	// The healthy router still deployed.
	if len(healthy.runs) != 1 {
		t.Errorf("healthy run count = %d, want 1", len(healthy.runs))
	}
}

func TestCaptureToFile(t *testing.T) {
	dir := t.TempDir()
	path, err := CaptureToFile(&fakeConsole{}, dir, "R1")
	if err != nil {
		t.Fatalf("CaptureToFile() error = %v", err)
	}
	if filepath.Base(path) != "R1_config.txt" {
		t.Errorf("path = %s, want R1_config.txt", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hostname fake\n" {
		t.Errorf("captured = %q", data)
	}
}
