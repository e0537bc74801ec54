// Package synth turns a validated intent model into per-router IOS
// configuration text.
//
// Synthesis runs in fixed phases over the whole model: router IDs and
// loopbacks, physical interface assignment, transport subnet allocation,
// VRF derivation, then rendering. Each phase walks routers in document
// order so that two runs over the same intent produce byte-identical
// output.
package synth

import (
	"net"

	"github.com/routelab-net/routelab/pkg/intent"
	"github.com/routelab-net/routelab/pkg/util"
)

// Plan is the fully resolved allocation state for one synthesis run.
type Plan struct {
	Routers    []*RouterPlan // document order
	ByHostname map[string]*RouterPlan
}

// RouterPlan holds everything the renderer needs for one router.
type RouterPlan struct {
	Router   *intent.Router
	AS       *intent.AS
	ID       int    // router ID, also the loopback host offset
	Loopback net.IP // Loopback0 /32 address

	Interfaces []*Interface // declared link order
	VRFs       []*VRF       // creation order; renderer sorts by name
}

// Interface is one resolved physical interface carrying one link.
type Interface struct {
	Name     string
	Link     *intent.Link
	Neighbor string

	Subnet  *net.IPNet // shared /30 transport block
	Address net.IP     // local end

	External bool   // link crosses an AS boundary
	RemoteAS int    // remote endpoint's AS number
	Relation string // remote AS's declared role toward us, "" if unknown
	MPLS     bool   // both endpoint ASes run LDP

	VRF *VRF // client-edge binding on the provider side, nil otherwise
}

// RemoteAddress returns the neighbor's end of the /30. Endpoint addresses
// are always usable hosts, so the peer lookup cannot miss.
func (i *Interface) RemoteAddress() net.IP {
	return util.ComputeNeighborIP(i.Address)
}

// VRF is one provider-edge virtual routing table facing a VPN client.
type VRF struct {
	Name         string
	RD           string
	RouteTargets []string // sorted, import == export
	Neighbor     string   // CE hostname
	RemoteAS     int
}

// IsBorder reports whether the router has at least one inter-AS link.
func (rp *RouterPlan) IsBorder() bool {
	for _, iface := range rp.Interfaces {
		if iface.External {
			return true
		}
	}
	return false
}

// IsPE reports whether the router terminates at least one VRF.
func (rp *RouterPlan) IsPE() bool {
	return len(rp.VRFs) > 0
}
