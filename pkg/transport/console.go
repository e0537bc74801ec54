// Package transport drives router consoles over telnet.
//
// GNS3 exposes each emulated router's serial console as a raw telnet
// endpoint. Sessions are prompt-driven: every write waits for the next
// IOS prompt before the following command is sent, so per-device command
// ordering is strictly serial.
package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ziutek/telnet"

	"github.com/routelab-net/routelab/pkg/util"
)

// Console is one open device session.
type Console interface {
	Run(cmds []string) error
	Capture() (string, error)
	Close() error
}

// Options tunes a console session.
type Options struct {
	EnablePassword string
	Timeout        time.Duration
}

const defaultTimeout = 10 * time.Second

// IOS prompt terminators. A bare ">" is user exec, "#" covers privileged
// and all configuration modes.
var promptDelims = []string{">", "#"}

// TelnetConsole is the telnet implementation of Console.
type TelnetConsole struct {
	hostname string
	session  string // per-session correlation ID
	conn     *telnet.Conn
	opts     Options
}

// Dial opens a console session and normalizes the terminal: wakes the
// line, enters privileged mode, and disables output paging.
func Dial(addr, hostname string, opts Options) (*TelnetConsole, error) {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	conn, err := telnet.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing console %s for %s: %w", addr, hostname, err)
	}

	c := &TelnetConsole{
		hostname: hostname,
		session:  uuid.NewString(),
		conn:     conn,
		opts:     opts,
	}
	util.Logger.WithFields(logrus.Fields{
		"router":  hostname,
		"addr":    addr,
		"session": c.session,
	}).Info("console session opened")

	if err := c.setup(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *TelnetConsole) setup() error {
	// Wake the line; the first prompt may need a nudge.
	if err := c.write("\r\n"); err != nil {
		return err
	}
	out, err := c.readPrompt()
	if err != nil {
		return err
	}
	if strings.HasSuffix(out, ">") {
		if err := c.write("enable\r\n"); err != nil {
			return err
		}
		if c.opts.EnablePassword != "" {
			if _, err := c.read("Password:"); err != nil {
				return err
			}
			if err := c.write(c.opts.EnablePassword + "\r\n"); err != nil {
				return err
			}
		}
		if _, err := c.readPrompt(); err != nil {
			return err
		}
	}
	if err := c.write("terminal length 0\r\n"); err != nil {
		return err
	}
	_, err = c.readPrompt()
	return err
}

// Run sends each command and waits for the prompt after every one.
func (c *TelnetConsole) Run(cmds []string) error {
	for _, cmd := range cmds {
		util.Logger.WithFields(logrus.Fields{
			"router":  c.hostname,
			"session": c.session,
		}).Debugf("send: %s", cmd)
		if err := c.write(cmd + "\r\n"); err != nil {
			return err
		}
		if _, err := c.readPrompt(); err != nil {
			return err
		}
	}
	return nil
}

// Capture returns the device's running configuration.
func (c *TelnetConsole) Capture() (string, error) {
	const cmd = "show running-config"
	if err := c.write(cmd + "\r\n"); err != nil {
		return "", err
	}
	out, err := c.readPrompt()
	if err != nil {
		return "", err
	}
	return cleanCapture(out, cmd), nil
}

func (c *TelnetConsole) Close() error {
	util.Logger.WithFields(logrus.Fields{
		"router":  c.hostname,
		"session": c.session,
	}).Info("console session closed")
	return c.conn.Close()
}

func (c *TelnetConsole) write(s string) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.Timeout))
	if _, err := c.conn.Write([]byte(s)); err != nil {
		return fmt.Errorf("console %s: write: %w", c.hostname, err)
	}
	return nil
}

func (c *TelnetConsole) read(delims ...string) (string, error) {
	c.conn.SetReadDeadline(time.Now().Add(c.opts.Timeout))
	out, err := c.conn.ReadUntil(delims...)
	if err != nil {
		return "", fmt.Errorf("console %s: waiting for %v: %w", c.hostname, delims, err)
	}
	return string(out), nil
}

func (c *TelnetConsole) readPrompt() (string, error) {
	return c.read(promptDelims...)
}

// cleanCapture strips the echoed command, the trailing prompt line, and
// the "Building configuration" banner from raw capture output.
func cleanCapture(raw, cmd string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasSuffix(trimmed, cmd):
			continue
		case strings.HasPrefix(trimmed, "Building configuration"):
			continue
		case strings.HasPrefix(trimmed, "Current configuration"):
			continue
		}
		kept = append(kept, strings.TrimRight(line, "\r"))
	}
	for len(kept) > 0 && strings.TrimSpace(kept[0]) == "" {
		kept = kept[1:]
	}
	// The prompt the read stopped on sits at the tail.
	for len(kept) > 0 {
		last := strings.TrimSpace(kept[len(kept)-1])
		if last == "" || strings.HasSuffix(last, "#") || strings.HasSuffix(last, ">") {
			kept = kept[:len(kept)-1]
			continue
		}
		break
	}
	return strings.Join(kept, "\n") + "\n"
}
