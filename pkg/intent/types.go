// Package intent handles loading and validating network intent files.
//
// An intent file declares autonomous systems, their member routers, the
// links between routers, and VPN memberships. The model is validated and
// frozen at load time; synthesis never mutates it.
package intent

import "net"

// Top-level document keys follow the established intent file format.
const (
	IPVersionKey  = "ip_version"
	ASListKey     = "Les_AS"
	RouterListKey = "Les_routeurs"
)

// Relation kinds for inter-AS connections.
const (
	RelationPeer     = "peer"
	RelationProvider = "provider"
	RelationClient   = "client"
)

// Internal routing protocol tags.
const (
	RoutingOSPF = "OSPF"
	RoutingRIP  = "RIP" // reserved, accepted but synthesis only emits a bare process
)

// Document is the raw intent file structure.
type Document struct {
	IPVersion int       `json:"ip_version" yaml:"ip_version"`
	ASes      []*AS     `json:"Les_AS" yaml:"Les_AS"`
	Routers   []*Router `json:"Les_routeurs" yaml:"Les_routeurs"`
}

// AS describes one autonomous system.
type AS struct {
	ASNumber        int            `json:"AS_number" yaml:"AS_number"`
	IPv4Prefix      string         `json:"ipv4_prefix" yaml:"ipv4_prefix"`
	LoopbackPrefix  string         `json:"ipv4_loopback_prefix" yaml:"ipv4_loopback_prefix"`
	InternalRouting string         `json:"internal_routing" yaml:"internal_routing"`
	Routers         []string       `json:"routers" yaml:"routers"`
	LDPActivation   bool           `json:"LDP_activation,omitempty" yaml:"LDP_activation,omitempty"`
	ConnectedAS     []*ConnectedAS `json:"connected_AS,omitempty" yaml:"connected_AS,omitempty"`

	// Parsed forms, populated at load time.
	Prefix         *net.IPNet         `json:"-" yaml:"-"`
	Loopback       *net.IPNet         `json:"-" yaml:"-"`
	ConnectedByNum map[int]*ConnectedAS `json:"-" yaml:"-"`
	memberSet      map[string]bool
}

// ConnectedAS describes one inter-AS connection record: the peer AS, the
// relationship kind, and the transport prefix reserved for each local
// border router's link toward that AS.
type ConnectedAS struct {
	ASNumber          int               `json:"AS_number" yaml:"AS_number"`
	Relation          string            `json:"relation" yaml:"relation"`
	TransportPrefixes map[string]string `json:"transport_prefixes" yaml:"transport_prefixes"`
}

// Router describes one router and its declared links.
type Router struct {
	Hostname        string   `json:"hostname" yaml:"hostname"`
	ASNumber        int      `json:"AS_number" yaml:"AS_number"`
	Links           []*Link  `json:"links" yaml:"links"`
	LoopbackAddress string   `json:"ipv4_loopback_address,omitempty" yaml:"ipv4_loopback_address,omitempty"`
	VPNFamily       []int    `json:"VPN_family,omitempty" yaml:"VPN_family,omitempty"`
	Position        Position `json:"position,omitempty" yaml:"position,omitempty"`
}

// Link is one directed link record owned by a router. The remote endpoint
// is referenced by hostname only; the remote router declares its own record
// back (validated at load).
type Link struct {
	Hostname  string `json:"hostname" yaml:"hostname"`
	Interface string `json:"interface,omitempty" yaml:"interface,omitempty"`
	IPv4      string `json:"ipv4_address,omitempty" yaml:"ipv4_address,omitempty"`
	OSPFCost  int    `json:"ospf_cost,omitempty" yaml:"ospf_cost,omitempty"`
}

// Position is the topology layout hint for the GNS3 canvas. Not used by
// synthesis.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Model is the validated, frozen intent with lookup maps.
type Model struct {
	Document

	ASByNumber       map[int]*AS
	RouterByHostname map[string]*Router
}

// ASOf returns the AS owning the given router hostname, or nil.
func (m *Model) ASOf(hostname string) *AS {
	r, ok := m.RouterByHostname[hostname]
	if !ok {
		return nil
	}
	return m.ASByNumber[r.ASNumber]
}

// IsMember reports whether hostname is a declared member of the AS.
func (a *AS) IsMember(hostname string) bool {
	return a.memberSet[hostname]
}

// HasExplicitLoopback reports whether the router pins its own loopback.
func (r *Router) HasExplicitLoopback() bool {
	return r.LoopbackAddress != ""
}

// BackLink returns the remote router's link record pointing back at r, or
// nil if the remote router declares none.
func (m *Model) BackLink(r *Router, link *Link) *Link {
	remote, ok := m.RouterByHostname[link.Hostname]
	if !ok {
		return nil
	}
	for _, other := range remote.Links {
		if other.Hostname == r.Hostname {
			return other
		}
	}
	return nil
}
