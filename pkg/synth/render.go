package synth

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/routelab-net/routelab/pkg/intent"
	"github.com/routelab-net/routelab/pkg/util"
)

// OSPF process ID used on every router.
const ospfProcessID = 1984

// Local-preference values by the remote AS's declared role.
var localPrefByRelation = map[string]int{
	intent.RelationClient:   300,
	intent.RelationPeer:     200,
	intent.RelationProvider: 100,
}

// renderRouter emits the full configuration text of one router. Every
// phase below iterates in a sorted or document-fixed order, so rendering
// the same plan twice is byte-identical.
func renderRouter(plan *Plan, rp *RouterPlan) string {
	var b strings.Builder

	renderPreamble(&b, rp)
	renderVRFDefinitions(&b, rp)
	renderInterfaces(&b, rp)
	renderIGP(&b, rp)
	renderBGP(&b, plan, rp)
	renderPolicy(&b, rp)
	renderTail(&b)

	return b.String()
}

func renderPreamble(b *strings.Builder, rp *RouterPlan) {
	fmt.Fprintf(b, "hostname %s\n!\n", rp.Router.Hostname)
	b.WriteString("ip routing\nip cef\nip bgp-community new-format\n!\n")

	for _, iface := range rp.Interfaces {
		if iface.MPLS {
			b.WriteString("mpls ldp router-id Loopback0 force\n!\n")
			return
		}
	}
}

func sortedVRFs(rp *RouterPlan) []*VRF {
	vrfs := append([]*VRF(nil), rp.VRFs...)
	sort.Slice(vrfs, func(i, j int) bool { return vrfs[i].Name < vrfs[j].Name })
	return vrfs
}

func renderVRFDefinitions(b *strings.Builder, rp *RouterPlan) {
	for _, vrf := range sortedVRFs(rp) {
		fmt.Fprintf(b, "ip vrf %s\n", vrf.Name)
		fmt.Fprintf(b, " rd %s\n", vrf.RD)
		for _, rt := range vrf.RouteTargets {
			fmt.Fprintf(b, " route-target export %s\n", rt)
		}
		for _, rt := range vrf.RouteTargets {
			fmt.Fprintf(b, " route-target import %s\n", rt)
		}
		b.WriteString("!\n")
	}
}

// renderInterfaces emits Loopback0 first, then every pool interface in
// pool order. Pool members with no link are explicitly shut down.
func renderInterfaces(b *strings.Builder, rp *RouterPlan) {
	b.WriteString("interface Loopback0\n")
	fmt.Fprintf(b, " ip address %s 255.255.255.255\n!\n", rp.Loopback)

	byName := make(map[string]*Interface, len(rp.Interfaces))
	for _, iface := range rp.Interfaces {
		byName[iface.Name] = iface
	}

	for _, name := range interfacePoolTemplate {
		fmt.Fprintf(b, "interface %s\n", name)
		iface, used := byName[name]
		if !used {
			b.WriteString(" shutdown\n!\n")
			continue
		}
		if iface.VRF != nil {
			fmt.Fprintf(b, " ip vrf forwarding %s\n", iface.VRF.Name)
		}
		ones, _ := iface.Subnet.Mask.Size()
		fmt.Fprintf(b, " ip address %s %s\n", iface.Address, util.MaskString(ones))
		if iface.Link.OSPFCost > 0 {
			fmt.Fprintf(b, " ip ospf cost %d\n", iface.Link.OSPFCost)
		}
		if iface.MPLS {
			b.WriteString(" mpls ip\n")
		}
		b.WriteString("!\n")
	}
}

// renderIGP emits the interior routing process. OSPF uses a single area 0;
// inter-AS interfaces are passive so no adjacency forms over them.
func renderIGP(b *strings.Builder, rp *RouterPlan) {
	if rp.AS.InternalRouting == intent.RoutingRIP {
		b.WriteString("router rip\n version 2\n")
		fmt.Fprintf(b, " network %s\n!\n", rp.AS.Prefix.IP)
		return
	}

	fmt.Fprintf(b, "router ospf %d\n", ospfProcessID)
	fmt.Fprintf(b, " router-id %d.%d.%d.%d\n", rp.ID, rp.ID, rp.ID, rp.ID)

	var passive []string
	for _, iface := range rp.Interfaces {
		if iface.External {
			passive = append(passive, iface.Name)
		}
	}
	sort.Strings(passive)
	for _, name := range passive {
		fmt.Fprintf(b, " passive-interface %s\n", name)
	}

	fmt.Fprintf(b, " network %s 0.0.0.0 area 0\n", rp.Loopback)
	var subnets []*net.IPNet
	for _, iface := range rp.Interfaces {
		if !iface.External {
			subnets = append(subnets, iface.Subnet)
		}
	}
	sort.Slice(subnets, func(i, j int) bool {
		return util.IPToUint32(subnets[i].IP) < util.IPToUint32(subnets[j].IP)
	})
	for _, subnet := range subnets {
		ones, _ := subnet.Mask.Size()
		fmt.Fprintf(b, " network %s %s area 0\n", subnet.IP, util.WildcardString(ones))
	}
	b.WriteString("!\n")
}

// bgpNeighbor is one resolved BGP session endpoint for rendering.
type bgpNeighbor struct {
	addr     net.IP
	remoteAS int
	ibgp     bool
	relation string // eBGP only
	peerIsPE bool   // iBGP only, gates vpnv4 activation
}

// bgpNeighbors collects the router's sessions: the iBGP full mesh over
// member loopbacks (N-1 sessions), then eBGP per inter-AS link using link
// addresses. Client-edge links bound to a VRF are excluded here; their
// session lives in the VRF address-family.
func bgpNeighbors(plan *Plan, rp *RouterPlan) []bgpNeighbor {
	var ibgp []bgpNeighbor
	for _, hostname := range rp.AS.Routers {
		if hostname == rp.Router.Hostname {
			continue
		}
		peer := plan.ByHostname[hostname]
		ibgp = append(ibgp, bgpNeighbor{
			addr:     peer.Loopback,
			remoteAS: rp.Router.ASNumber,
			ibgp:     true,
			peerIsPE: peer.IsPE(),
		})
	}
	sort.Slice(ibgp, func(i, j int) bool {
		return util.IPToUint32(ibgp[i].addr) < util.IPToUint32(ibgp[j].addr)
	})

	var ebgp []bgpNeighbor
	for _, iface := range rp.Interfaces {
		if !iface.External || iface.VRF != nil {
			continue
		}
		ebgp = append(ebgp, bgpNeighbor{
			addr:     iface.RemoteAddress(),
			remoteAS: iface.RemoteAS,
			relation: iface.Relation,
		})
	}
	sort.Slice(ebgp, func(i, j int) bool {
		return util.IPToUint32(ebgp[i].addr) < util.IPToUint32(ebgp[j].addr)
	})

	return append(ibgp, ebgp...)
}

func renderBGP(b *strings.Builder, plan *Plan, rp *RouterPlan) {
	neighbors := bgpNeighbors(plan, rp)

	fmt.Fprintf(b, "router bgp %d\n", rp.Router.ASNumber)
	for _, n := range neighbors {
		fmt.Fprintf(b, " neighbor %s remote-as %d\n", n.addr, n.remoteAS)
		if n.ibgp {
			fmt.Fprintf(b, " neighbor %s update-source Loopback0\n", n.addr)
		}
	}

	b.WriteString(" address-family ipv4\n")
	if rp.IsBorder() {
		ones, _ := rp.AS.Prefix.Mask.Size()
		fmt.Fprintf(b, "  network %s mask %s\n", rp.AS.Prefix.IP, util.MaskString(ones))
	}
	for _, n := range neighbors {
		fmt.Fprintf(b, "  neighbor %s activate\n", n.addr)
		if n.ibgp {
			fmt.Fprintf(b, "  neighbor %s next-hop-self\n", n.addr)
			fmt.Fprintf(b, "  neighbor %s send-community both\n", n.addr)
			continue
		}
		if n.relation != "" {
			fmt.Fprintf(b, "  neighbor %s route-map FROM-AS%d in\n", n.addr, n.remoteAS)
			// Clients get the full table; the outbound filter applies only
			// toward peers and providers.
			if n.relation != intent.RelationClient {
				fmt.Fprintf(b, "  neighbor %s route-map General-OUT out\n", n.addr)
			}
		}
	}
	b.WriteString(" exit-address-family\n")

	if rp.IsPE() {
		b.WriteString(" address-family vpnv4\n")
		for _, n := range neighbors {
			if !n.ibgp || !n.peerIsPE {
				continue
			}
			fmt.Fprintf(b, "  neighbor %s activate\n", n.addr)
			fmt.Fprintf(b, "  neighbor %s send-community both\n", n.addr)
		}
		b.WriteString(" exit-address-family\n")
	}

	for _, vrf := range sortedVRFs(rp) {
		iface := rp.interfaceForVRF(vrf)
		fmt.Fprintf(b, " address-family ipv4 vrf %s\n", vrf.Name)
		b.WriteString("  redistribute connected\n")
		fmt.Fprintf(b, "  neighbor %s remote-as %d\n", iface.RemoteAddress(), vrf.RemoteAS)
		fmt.Fprintf(b, "  neighbor %s activate\n", iface.RemoteAddress())
		b.WriteString(" exit-address-family\n")
	}
	b.WriteString("!\n")
}

func (rp *RouterPlan) interfaceForVRF(vrf *VRF) *Interface {
	for _, iface := range rp.Interfaces {
		if iface.VRF == vrf {
			return iface
		}
	}
	return nil
}

// renderPolicy emits the relationship policy objects referenced by the
// eBGP sessions: a tagging route-map per connected AS and the shared
// General-OUT map denying routes learned from non-client neighbors.
// Sessions with no declared relation carry no policy, so a router whose
// external links are all relation-less emits nothing here.
func renderPolicy(b *strings.Builder, rp *RouterPlan) {
	relationByAS := make(map[int]string)
	for _, iface := range rp.Interfaces {
		if iface.External && iface.VRF == nil && iface.Relation != "" {
			relationByAS[iface.RemoteAS] = iface.Relation
		}
	}
	if len(relationByAS) == 0 {
		return
	}

	asNumbers := make([]int, 0, len(relationByAS))
	for asn := range relationByAS {
		asNumbers = append(asNumbers, asn)
	}
	sort.Ints(asNumbers)

	for _, asn := range asNumbers {
		fmt.Fprintf(b, "ip community-list standard AS%d-ROUTES permit %d:1000\n", asn, asn)
	}
	b.WriteString("!\n")

	for _, asn := range asNumbers {
		fmt.Fprintf(b, "route-map FROM-AS%d permit 10\n", asn)
		fmt.Fprintf(b, " set local-preference %d\n", localPrefByRelation[relationByAS[asn]])
		fmt.Fprintf(b, " set community %d:1000\n", asn)
		b.WriteString("!\n")
	}

	seq := 10
	for _, asn := range asNumbers {
		if relationByAS[asn] == intent.RelationClient {
			continue
		}
		fmt.Fprintf(b, "route-map General-OUT deny %d\n", seq)
		fmt.Fprintf(b, " match community AS%d-ROUTES\n", asn)
		b.WriteString("!\n")
		seq += 10
	}
	fmt.Fprintf(b, "route-map General-OUT permit %d\n!\n", seq)
}

func renderTail(b *strings.Builder) {
	b.WriteString("line con 0\n!\nline vty 0 4\n login\n!\nend\n")
}

// subnetOf is a test seam exposing the resolved /30 of a link.
func (p *Plan) subnetOf(a, b string) *net.IPNet {
	rp, ok := p.ByHostname[a]
	if !ok {
		return nil
	}
	iface := rp.interfaceTo(b)
	if iface == nil {
		return nil
	}
	return iface.Subnet
}
