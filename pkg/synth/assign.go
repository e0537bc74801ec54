package synth

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/routelab-net/routelab/pkg/intent"
	"github.com/routelab-net/routelab/pkg/ipam"
	"github.com/routelab-net/routelab/pkg/util"
)

// buildPlan resolves all allocations for a model: router IDs, loopbacks,
// physical interfaces, transport subnets, and VRFs.
func buildPlan(m *intent.Model) (*Plan, error) {
	plan := &Plan{ByHostname: make(map[string]*RouterPlan, len(m.Routers))}
	for _, r := range m.Routers {
		rp := &RouterPlan{Router: r, AS: m.ASByNumber[r.ASNumber]}
		plan.Routers = append(plan.Routers, rp)
		plan.ByHostname[r.Hostname] = rp
	}

	if err := assignIDs(m, plan); err != nil {
		return nil, err
	}
	if err := assignInterfaces(plan); err != nil {
		return nil, err
	}
	if err := allocateSubnets(m, plan); err != nil {
		return nil, err
	}
	deriveAttributes(m, plan)
	deriveVRFs(m, plan)
	return plan, nil
}

// assignIDs hands out router IDs and loopback addresses. Explicit loopbacks
// fix their router ID (the offset inside the AS loopback prefix) and are
// reserved before the counter hands out anything, so automatic IDs never
// collide with pinned ones. Assignment order is AS document order, then
// member order.
func assignIDs(m *intent.Model, plan *Plan) error {
	counter := ipam.NewIDCounter()

	for _, as := range m.ASes {
		base := util.IPToUint32(as.Loopback.IP)
		for _, hostname := range as.Routers {
			r := m.RouterByHostname[hostname]
			if !r.HasExplicitLoopback() {
				continue
			}
			addr, _ := util.SplitIPMask(r.LoopbackAddress)
			ip := net.ParseIP(addr).To4()
			counter.Reserve(int(util.IPToUint32(ip) - base))
		}
	}

	for _, as := range m.ASes {
		pool := ipam.NewLoopbackPool(as.Loopback, as.ASNumber)
		base := util.IPToUint32(as.Loopback.IP)
		for _, hostname := range as.Routers {
			rp := plan.ByHostname[hostname]
			if rp.Router.HasExplicitLoopback() {
				addr, _ := util.SplitIPMask(rp.Router.LoopbackAddress)
				rp.Loopback = net.ParseIP(addr).To4()
				rp.ID = int(util.IPToUint32(rp.Loopback) - base)
				continue
			}
			rp.ID = counter.Next()
			ip, err := pool.AddressForID(rp.ID)
			if err != nil {
				return fmt.Errorf("router %s: %w", hostname, err)
			}
			rp.Loopback = ip
		}
	}
	return nil
}

// assignInterfaces maps each declared link onto a physical interface, one
// fresh pool copy per router, in declared link order.
func assignInterfaces(plan *Plan) error {
	for _, rp := range plan.Routers {
		pool := newIfacePool(rp.Router.Hostname)
		for _, link := range rp.Router.Links {
			var name string
			if link.Interface != "" {
				if err := pool.reserve(link.Interface); err != nil {
					return err
				}
				name = link.Interface
			} else {
				popped, err := pool.popFirst()
				if err != nil {
					return err
				}
				name = popped
			}
			rp.Interfaces = append(rp.Interfaces, &Interface{
				Name:     name,
				Link:     link,
				Neighbor: link.Hostname,
			})
		}
	}
	return nil
}

// linkKey is the unordered endpoint pair identifying one link.
func linkKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func hostPair(block *net.IPNet) (net.IP, net.IP) {
	return ipam.HostAddresses(block)
}

// subnetAllocator carries the per-pool state of the subnet phase.
type subnetAllocator struct {
	m         *intent.Model
	intra     map[int]*ipam.Pool    // AS number -> transport pool
	interPool map[string]*ipam.Pool // transport prefix string -> pool
	blocks    map[string]*net.IPNet // link key -> /30
}

// allocateSubnets fixes a /30 per link and an address per endpoint, in two
// passes: explicit addresses pin their containing blocks first, then
// remaining links allocate in document order. The lexically lower hostname
// takes the first usable host address.
func allocateSubnets(m *intent.Model, plan *Plan) error {
	alloc := &subnetAllocator{
		m:         m,
		intra:     make(map[int]*ipam.Pool),
		interPool: make(map[string]*ipam.Pool),
		blocks:    make(map[string]*net.IPNet),
	}
	for _, as := range m.ASes {
		alloc.intra[as.ASNumber] = ipam.NewPool(as.Prefix, as.ASNumber)
	}

	// Pass one: pin blocks implied by explicit addresses.
	for _, rp := range plan.Routers {
		for _, iface := range rp.Interfaces {
			if iface.Link.IPv4 == "" {
				continue
			}
			if err := alloc.pin(rp, iface); err != nil {
				return err
			}
		}
	}

	// Pass two: allocate the rest and assign endpoint addresses.
	for _, rp := range plan.Routers {
		for _, iface := range rp.Interfaces {
			if iface.Subnet != nil {
				continue
			}
			if err := alloc.resolve(plan, rp, iface); err != nil {
				return err
			}
		}
	}
	return nil
}

// poolFor returns the allocation pool for a link: the AS transport pool
// for intra-AS links, the declared boundary prefix pool for inter-AS ones.
func (a *subnetAllocator) poolFor(rp *RouterPlan, iface *Interface) (*ipam.Pool, error) {
	local := rp.Router
	remote := a.m.RouterByHostname[iface.Neighbor]
	if local.ASNumber == remote.ASNumber {
		return a.intra[local.ASNumber], nil
	}

	cidr := transportPrefix(a.m, local, remote)
	if cidr == "" {
		return nil, util.NewAllocationError(util.ErrInvalidIntent, local.ASNumber,
			local.Hostname, remote.Hostname,
			fmt.Sprintf("no transport prefix declared between AS %d and AS %d",
				local.ASNumber, remote.ASNumber))
	}
	pool, ok := a.interPool[cidr]
	if !ok {
		prefix, err := util.ParseIPv4CIDR(cidr)
		if err != nil {
			return nil, err
		}
		pool = ipam.NewPool(prefix, local.ASNumber)
		a.interPool[cidr] = pool
	}
	return pool, nil
}

// transportPrefix looks up the boundary prefix for an inter-AS link,
// preferring the record keyed by the local border router.
func transportPrefix(m *intent.Model, local, remote *intent.Router) string {
	localAS := m.ASByNumber[local.ASNumber]
	if conn := localAS.ConnectedByNum[remote.ASNumber]; conn != nil {
		if cidr, ok := conn.TransportPrefixes[local.Hostname]; ok {
			return cidr
		}
	}
	remoteAS := m.ASByNumber[remote.ASNumber]
	if conn := remoteAS.ConnectedByNum[local.ASNumber]; conn != nil {
		if cidr, ok := conn.TransportPrefixes[remote.Hostname]; ok {
			return cidr
		}
	}
	return ""
}

// pin reserves the /30 containing an explicit link address. Two explicit
// endpoints naming different blocks is a conflict.
func (a *subnetAllocator) pin(rp *RouterPlan, iface *Interface) error {
	addr, _ := util.SplitIPMask(iface.Link.IPv4)
	ip := net.ParseIP(addr).To4()
	block := ipam.ContainingBlock(ip)

	key := linkKey(rp.Router.Hostname, iface.Neighbor)
	if prev, pinned := a.blocks[key]; pinned {
		if prev.String() != block.String() {
			return util.NewAllocationError(util.ErrAddressConflict, rp.Router.ASNumber,
				rp.Router.Hostname, iface.Neighbor,
				fmt.Sprintf("explicit addresses span different subnets (%s, %s)", prev, block))
		}
		return nil
	}

	pool, err := a.poolFor(rp, iface)
	if err != nil {
		return err
	}
	if err := pool.Reserve(block); err != nil {
		return util.NewAllocationError(util.ErrAddressConflict, rp.Router.ASNumber,
			rp.Router.Hostname, iface.Neighbor, err.Error())
	}
	a.blocks[key] = block
	return nil
}

// resolve fixes the block and both endpoint addresses of one link.
// Explicit overrides take precedence; with exactly one side pinned the
// other side gets the remaining usable host, and with neither pinned the
// lexically lower hostname takes the first usable host.
func (a *subnetAllocator) resolve(plan *Plan, rp *RouterPlan, iface *Interface) error {
	local := rp.Router.Hostname
	remote := iface.Neighbor
	key := linkKey(local, remote)

	block, ok := a.blocks[key]
	if !ok {
		pool, err := a.poolFor(rp, iface)
		if err != nil {
			return err
		}
		block, err = pool.AllocateBlock(local, remote)
		if err != nil {
			return err
		}
		a.blocks[key] = block
	}

	remotePlan := plan.ByHostname[remote]
	back := remotePlan.interfaceTo(local)

	localAddr, err := explicitAddress(rp, iface, block)
	if err != nil {
		return err
	}
	remoteAddr, err := explicitAddress(remotePlan, back, block)
	if err != nil {
		return err
	}

	switch {
	case localAddr != nil && remoteAddr != nil:
		if remoteAddr.Equal(localAddr) {
			return util.NewAllocationError(util.ErrAddressConflict, rp.Router.ASNumber,
				local, remote, fmt.Sprintf("both endpoints resolve to %s", localAddr))
		}
	case localAddr != nil:
		remoteAddr = util.ComputeNeighborIP(localAddr)
	case remoteAddr != nil:
		localAddr = util.ComputeNeighborIP(remoteAddr)
	default:
		first, second := hostPair(block)
		if local < remote {
			localAddr, remoteAddr = first, second
		} else {
			localAddr, remoteAddr = second, first
		}
	}

	iface.Subnet = block
	iface.Address = localAddr
	back.Subnet = block
	back.Address = remoteAddr
	return nil
}

// explicitAddress returns the declared override of one endpoint, or nil
// when the link carries none. The override must be a usable host of the
// link's block.
func explicitAddress(rp *RouterPlan, iface *Interface, block *net.IPNet) (net.IP, error) {
	if iface.Link.IPv4 == "" {
		return nil, nil
	}
	addr, _ := util.SplitIPMask(iface.Link.IPv4)
	ip := net.ParseIP(addr).To4()
	if !block.Contains(ip) {
		return nil, util.NewAllocationError(util.ErrAddressConflict, rp.Router.ASNumber,
			rp.Router.Hostname, iface.Neighbor,
			fmt.Sprintf("explicit address %s outside link subnet %s", ip, block))
	}
	if util.ComputeNeighborIP(ip) == nil {
		return nil, util.NewAllocationError(util.ErrAddressConflict, rp.Router.ASNumber,
			rp.Router.Hostname, iface.Neighbor,
			fmt.Sprintf("explicit address %s is the network or broadcast address of %s", ip, block))
	}
	return ip, nil
}

// interfaceTo returns the router's interface facing the given neighbor.
// Link symmetry is validated at load, so the lookup cannot miss.
func (rp *RouterPlan) interfaceTo(neighbor string) *Interface {
	for _, iface := range rp.Interfaces {
		if iface.Neighbor == neighbor {
			return iface
		}
	}
	return nil
}

// deriveAttributes fills in the AS-relationship facts of each interface.
func deriveAttributes(m *intent.Model, plan *Plan) {
	for _, rp := range plan.Routers {
		for _, iface := range rp.Interfaces {
			remote := m.RouterByHostname[iface.Neighbor]
			remoteAS := m.ASByNumber[remote.ASNumber]
			iface.RemoteAS = remote.ASNumber
			iface.External = remote.ASNumber != rp.Router.ASNumber
			iface.MPLS = rp.AS.LDPActivation && remoteAS.LDPActivation
			if iface.External {
				if conn := rp.AS.ConnectedByNum[remote.ASNumber]; conn != nil {
					iface.Relation = conn.Relation
				}
			}
		}
	}
}

// deriveVRFs creates one VRF per client-edge link on the provider side.
// The RD index is a single monotonic counter over the whole run.
func deriveVRFs(m *intent.Model, plan *Plan) {
	rdIndex := 1
	for _, rp := range plan.Routers {
		for _, iface := range rp.Interfaces {
			if !iface.External || iface.Relation != intent.RelationClient {
				continue
			}
			ce := m.RouterByHostname[iface.Neighbor]
			if len(ce.VPNFamily) == 0 {
				continue
			}

			families := append([]int(nil), ce.VPNFamily...)
			sort.Ints(families)
			targets := make([]string, len(families))
			for i, n := range families {
				targets[i] = fmt.Sprintf("%d:%d", ce.ASNumber, n)
			}

			vrf := &VRF{
				Name:         fmt.Sprintf("VRF_%s_%s", strings.ReplaceAll(iface.Name, "/", "-"), ce.Hostname),
				RD:           fmt.Sprintf("%d:%d", ce.ASNumber, rdIndex),
				RouteTargets: targets,
				Neighbor:     ce.Hostname,
				RemoteAS:     ce.ASNumber,
			}
			rdIndex++
			iface.VRF = vrf
			rp.VRFs = append(rp.VRFs, vrf)
		}
	}
}
