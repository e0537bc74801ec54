// Package gns3 is a minimal REST client for the GNS3 server API (v2).
//
// It resolves lab routers to their console endpoints and on-disk config
// paths, and pushes canvas positions back. Single-shot lab tooling: no
// retries, no caching beyond the node list of the opened project.
package gns3

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/routelab-net/routelab/pkg/util"
)

// Node is one project node as reported by the server.
type Node struct {
	Name          string `json:"name"`
	NodeID        string `json:"node_id"`
	ConsoleHost   string `json:"console_host"`
	Console       int    `json:"console"`
	NodeDirectory string `json:"node_directory"`
	X             int    `json:"x"`
	Y             int    `json:"y"`
	Properties    struct {
		DynamipsID int `json:"dynamips_id"`
	} `json:"properties"`
}

type project struct {
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
}

// Client talks to one GNS3 server.
type Client struct {
	base      string
	http      *http.Client
	projectID string
	nodes     map[string]*Node // hostname -> node, filled by OpenProject
}

// NewClient creates a client for a server base URL such as
// "http://127.0.0.1:3080".
func NewClient(baseURL string) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// OpenProject resolves a project by name and loads its node list.
func (c *Client) OpenProject(name string) error {
	var projects []project
	if err := c.get("/v2/projects", &projects); err != nil {
		return err
	}
	for _, p := range projects {
		if p.Name == name {
			c.projectID = p.ProjectID
			return c.loadNodes()
		}
	}
	return fmt.Errorf("project %q: %w", name, util.ErrNotFound)
}

func (c *Client) loadNodes() error {
	var nodes []*Node
	if err := c.get("/v2/projects/"+c.projectID+"/nodes", &nodes); err != nil {
		return err
	}
	c.nodes = make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		c.nodes[n.Name] = n
	}
	util.Logger.WithField("nodes", len(nodes)).Debug("loaded project nodes")
	return nil
}

// Nodes returns the opened project's nodes.
func (c *Client) Nodes() ([]*Node, error) {
	if c.nodes == nil {
		return nil, fmt.Errorf("no project opened: %w", util.ErrNotConnected)
	}
	nodes := make([]*Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (c *Client) node(hostname string) (*Node, error) {
	if c.nodes == nil {
		return nil, fmt.Errorf("no project opened: %w", util.ErrNotConnected)
	}
	n, ok := c.nodes[hostname]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", hostname, util.ErrNotFound)
	}
	return n, nil
}

// ConsoleEndpoint returns the "host:port" telnet address of a router's
// console.
func (c *Client) ConsoleEndpoint(hostname string) (string, error) {
	n, err := c.node(hostname)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", n.ConsoleHost, n.Console), nil
}

// ConfigPath returns the dynamips startup-config path of a router inside
// the project directory.
func (c *Client) ConfigPath(hostname string) (string, error) {
	n, err := c.node(hostname)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("i%d_startup-config.cfg", n.Properties.DynamipsID)
	return filepath.Join(n.NodeDirectory, "configs", name), nil
}

// UpdatePosition moves a node on the project canvas.
func (c *Client) UpdatePosition(hostname string, x, y int) error {
	n, err := c.node(hostname)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]int{"x": x, "y": y})
	if err != nil {
		return err
	}
	url := c.base + "/v2/projects/" + c.projectID + "/nodes/" + n.NodeID
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("updating node %s: %w", hostname, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("updating node %s: server returned %s", hostname, resp.Status)
	}
	n.X, n.Y = x, y
	return nil
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: server returned %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}
