package intent

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/routelab-net/routelab/pkg/util"
)

// Load reads an intent file (JSON, or YAML by extension), validates it, and
// returns the frozen model. Validation failures abort the whole load; there
// is no partial model.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading intent file: %w", err)
	}

	var doc Document
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing intent file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing intent file %s: %w", path, err)
		}
	}

	return NewModel(&doc)
}

// NewModel builds lookup maps for a document, validates it, and freezes it.
func NewModel(doc *Document) (*Model, error) {
	m := &Model{
		Document:         *doc,
		ASByNumber:       make(map[int]*AS),
		RouterByHostname: make(map[string]*Router),
	}

	var v util.ValidationBuilder

	if doc.IPVersion != 4 {
		v.AddErrorf("unsupported ip_version %d (must be 4)", doc.IPVersion)
	}

	for _, as := range doc.ASes {
		if _, dup := m.ASByNumber[as.ASNumber]; dup {
			v.AddErrorf("duplicate AS number %d", as.ASNumber)
			continue
		}
		m.ASByNumber[as.ASNumber] = as
	}

	for _, r := range doc.Routers {
		if _, dup := m.RouterByHostname[r.Hostname]; dup {
			v.AddErrorf("duplicate router hostname %s", r.Hostname)
			continue
		}
		m.RouterByHostname[r.Hostname] = r
	}

	for _, as := range doc.ASes {
		m.buildAS(as, &v)
	}
	if !v.HasErrors() {
		m.validatePrefixOverlap(&v)
		m.validateMembership(&v)
		m.validateLinks(&v)
		m.validateConnections(&v)
		m.validateLoopbacks(&v)
	}

	if err := v.Build(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) buildAS(as *AS, v *util.ValidationBuilder) {
	if err := util.ValidateASN(as.ASNumber); err != nil {
		v.AddErrorf("AS %d: %v", as.ASNumber, err)
	}
	if as.InternalRouting != RoutingOSPF && as.InternalRouting != RoutingRIP {
		v.AddErrorf("AS %d: unknown internal_routing %q", as.ASNumber, as.InternalRouting)
	}

	var err error
	if as.Prefix, err = util.ParseIPv4CIDR(as.IPv4Prefix); err != nil {
		v.AddErrorf("AS %d: ipv4_prefix: %v", as.ASNumber, err)
	}
	if as.Loopback, err = util.ParseIPv4CIDR(as.LoopbackPrefix); err != nil {
		v.AddErrorf("AS %d: ipv4_loopback_prefix: %v", as.ASNumber, err)
	}

	as.memberSet = make(map[string]bool, len(as.Routers))
	for _, hostname := range as.Routers {
		as.memberSet[hostname] = true
	}

	as.ConnectedByNum = make(map[int]*ConnectedAS, len(as.ConnectedAS))
	for _, conn := range as.ConnectedAS {
		switch conn.Relation {
		case RelationPeer, RelationProvider, RelationClient:
		default:
			v.AddErrorf("AS %d: connection to AS %d has unknown relation %q",
				as.ASNumber, conn.ASNumber, conn.Relation)
		}
		if _, dup := as.ConnectedByNum[conn.ASNumber]; dup {
			v.AddErrorf("AS %d: duplicate connected_AS record for AS %d", as.ASNumber, conn.ASNumber)
			continue
		}
		as.ConnectedByNum[conn.ASNumber] = conn
		for hostname, cidr := range conn.TransportPrefixes {
			if _, err := util.ParseIPv4CIDR(cidr); err != nil {
				v.AddErrorf("AS %d: transport prefix for %s toward AS %d: %v",
					as.ASNumber, hostname, conn.ASNumber, err)
			}
		}
	}
}

// validatePrefixOverlap rejects transport pools or loopback pools that share
// address space across ASes. Disjoint pools are what later allows per-AS
// allocation without cross-AS coordination.
func (m *Model) validatePrefixOverlap(v *util.ValidationBuilder) {
	for i, a := range m.ASes {
		for _, b := range m.ASes[i+1:] {
			if a.Prefix != nil && b.Prefix != nil && util.PrefixesOverlap(a.Prefix, b.Prefix) {
				v.AddErrorf("AS %d and AS %d have overlapping ipv4_prefix (%s, %s)",
					a.ASNumber, b.ASNumber, a.IPv4Prefix, b.IPv4Prefix)
			}
			if a.Loopback != nil && b.Loopback != nil && util.PrefixesOverlap(a.Loopback, b.Loopback) {
				v.AddErrorf("AS %d and AS %d have overlapping loopback prefix (%s, %s)",
					a.ASNumber, b.ASNumber, a.LoopbackPrefix, b.LoopbackPrefix)
			}
		}
	}
}

// validateMembership enforces the bidirectional AS/router consistency
// invariant: each router names an existing AS whose member list names the
// router, and no router appears in two member lists.
func (m *Model) validateMembership(v *util.ValidationBuilder) {
	owner := make(map[string]int)
	for _, as := range m.ASes {
		for _, hostname := range as.Routers {
			if prev, seen := owner[hostname]; seen {
				v.AddErrorf("router %s listed in both AS %d and AS %d", hostname, prev, as.ASNumber)
				continue
			}
			owner[hostname] = as.ASNumber
			if _, ok := m.RouterByHostname[hostname]; !ok {
				v.AddErrorf("AS %d lists unknown router %s", as.ASNumber, hostname)
			}
		}
	}
	for _, r := range m.Routers {
		as, ok := m.ASByNumber[r.ASNumber]
		if !ok {
			v.AddErrorf("router %s references unknown AS %d", r.Hostname, r.ASNumber)
			continue
		}
		if !as.IsMember(r.Hostname) {
			v.AddErrorf("router %s claims AS %d but is not in its router list", r.Hostname, r.ASNumber)
		}
	}
}

func (m *Model) validateLinks(v *util.ValidationBuilder) {
	for _, r := range m.Routers {
		seen := make(map[string]bool, len(r.Links))
		for _, link := range r.Links {
			if seen[link.Hostname] {
				v.AddErrorf("router %s declares multiple links to %s", r.Hostname, link.Hostname)
			}
			seen[link.Hostname] = true

			if _, ok := m.RouterByHostname[link.Hostname]; !ok {
				v.AddErrorf("router %s has a link to unknown router %s", r.Hostname, link.Hostname)
				continue
			}
			if m.BackLink(r, link) == nil {
				v.AddErrorf("router %s links to %s but %s declares no link back",
					r.Hostname, link.Hostname, link.Hostname)
			}
			if link.OSPFCost < 0 {
				v.AddErrorf("router %s link to %s: ospf_cost must be positive", r.Hostname, link.Hostname)
			}
			if link.IPv4 != "" {
				if _, err := util.ParseIPv4CIDR(link.IPv4); err != nil {
					v.AddErrorf("router %s link to %s: ipv4_address: %v", r.Hostname, link.Hostname, err)
				}
			}
		}
	}
}

// validateConnections enforces relation symmetry across the two AS records:
// peer pairs with peer, provider pairs with client.
func (m *Model) validateConnections(v *util.ValidationBuilder) {
	inverse := map[string]string{
		RelationPeer:     RelationPeer,
		RelationProvider: RelationClient,
		RelationClient:   RelationProvider,
	}
	for _, as := range m.ASes {
		for _, conn := range as.ConnectedAS {
			peer, ok := m.ASByNumber[conn.ASNumber]
			if !ok {
				v.AddErrorf("AS %d declares a connection to unknown AS %d", as.ASNumber, conn.ASNumber)
				continue
			}
			back, ok := peer.ConnectedByNum[as.ASNumber]
			if !ok {
				v.AddErrorf("AS %d connects to AS %d but AS %d declares no connection back",
					as.ASNumber, conn.ASNumber, conn.ASNumber)
				continue
			}
			if want := inverse[conn.Relation]; want != "" && back.Relation != want {
				v.AddErrorf("asymmetric relation between AS %d (%s) and AS %d (%s)",
					as.ASNumber, conn.Relation, peer.ASNumber, back.Relation)
			}
			for hostname := range conn.TransportPrefixes {
				if !as.IsMember(hostname) {
					v.AddErrorf("AS %d: transport prefix keyed by %s, which is not an AS %d member",
						as.ASNumber, hostname, as.ASNumber)
				}
			}
		}
	}
}

func (m *Model) validateLoopbacks(v *util.ValidationBuilder) {
	for _, r := range m.Routers {
		if !r.HasExplicitLoopback() {
			continue
		}
		addr, _ := util.SplitIPMask(r.LoopbackAddress)
		ip := net.ParseIP(addr)
		if ip == nil || ip.To4() == nil {
			v.AddErrorf("router %s: invalid ipv4_loopback_address %q", r.Hostname, r.LoopbackAddress)
			continue
		}
		as := m.ASByNumber[r.ASNumber]
		if as != nil && as.Loopback != nil && !as.Loopback.Contains(ip) {
			v.AddErrorf("router %s: loopback %s outside AS %d loopback prefix %s",
				r.Hostname, addr, r.ASNumber, as.LoopbackPrefix)
		}
	}
}
