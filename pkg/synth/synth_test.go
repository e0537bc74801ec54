package synth

import (
	"errors"
	"strings"
	"testing"

	"github.com/routelab-net/routelab/pkg/confparse"
	"github.com/routelab-net/routelab/pkg/intent"
	"github.com/routelab-net/routelab/pkg/util"
)

// labDocument returns a provider AS 100 (PE1, P1, LDP enabled) with a VPN
// client AS 200 (CE1) hanging off PE1.
func labDocument() *intent.Document {
	return &intent.Document{
		IPVersion: 4,
		ASes: []*intent.AS{
			{
				ASNumber:        100,
				IPv4Prefix:      "192.168.1.0/24",
				LoopbackPrefix:  "10.1.1.0/24",
				InternalRouting: intent.RoutingOSPF,
				Routers:         []string{"PE1", "P1"},
				LDPActivation:   true,
				ConnectedAS: []*intent.ConnectedAS{
					{
						ASNumber: 200,
						Relation: intent.RelationClient,
						TransportPrefixes: map[string]string{
							"PE1": "172.16.0.0/30",
						},
					},
				},
			},
			{
				ASNumber:        200,
				IPv4Prefix:      "192.168.2.0/24",
				LoopbackPrefix:  "10.2.2.0/24",
				InternalRouting: intent.RoutingOSPF,
				Routers:         []string{"CE1"},
				ConnectedAS: []*intent.ConnectedAS{
					{
						ASNumber: 100,
						Relation: intent.RelationProvider,
						TransportPrefixes: map[string]string{
							"CE1": "172.16.0.0/30",
						},
					},
				},
			},
		},
		Routers: []*intent.Router{
			{
				Hostname: "PE1",
				ASNumber: 100,
				Links: []*intent.Link{
					{Hostname: "P1"},
					{Hostname: "CE1"},
				},
			},
			{
				Hostname: "P1",
				ASNumber: 100,
				Links:    []*intent.Link{{Hostname: "PE1"}},
			},
			{
				Hostname:  "CE1",
				ASNumber:  200,
				VPNFamily: []int{10},
				Links:     []*intent.Link{{Hostname: "PE1"}},
			},
		},
	}
}

func synthesize(t *testing.T, doc *intent.Document) *Result {
	t.Helper()
	m, err := intent.NewModel(doc)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	result, err := Synthesize(m)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	return result
}

// ============================================================================
// Allocation Tests
// ============================================================================

func TestSynthesize_Deterministic(t *testing.T) {
	first := synthesize(t, labDocument())
	second := synthesize(t, labDocument())

	for hostname, text := range first.Configs {
		if second.Configs[hostname] != text {
			t.Errorf("router %s: two runs over the same intent differ", hostname)
		}
	}
}

func TestSynthesize_LinkAddressing(t *testing.T) {
	result := synthesize(t, labDocument())

	if subnet := result.Plan.subnetOf("PE1", "P1"); subnet.String() != "192.168.1.0/30" {
		t.Errorf("PE1-P1 subnet = %s, want 192.168.1.0/30", subnet)
	}

	// P1 sorts before PE1, so it takes the first usable host.
	p1 := result.Plan.ByHostname["P1"].interfaceTo("PE1")
	pe1 := result.Plan.ByHostname["PE1"].interfaceTo("P1")
	if p1.Address.String() != "192.168.1.1" || pe1.Address.String() != "192.168.1.2" {
		t.Errorf("addresses = %s / %s, want 192.168.1.1 / 192.168.1.2", p1.Address, pe1.Address)
	}
	if pe1.RemoteAddress().String() != "192.168.1.1" {
		t.Errorf("PE1 remote address = %s, want 192.168.1.1", pe1.RemoteAddress())
	}
}

func TestSynthesize_InterASLinkUsesTransportPrefix(t *testing.T) {
	result := synthesize(t, labDocument())

	if subnet := result.Plan.subnetOf("PE1", "CE1"); subnet.String() != "172.16.0.0/30" {
		t.Errorf("PE1-CE1 subnet = %s, want 172.16.0.0/30", subnet)
	}
	ce1 := result.Plan.ByHostname["CE1"].interfaceTo("PE1")
	if ce1.Address.String() != "172.16.0.1" {
		t.Errorf("CE1 address = %s, want 172.16.0.1", ce1.Address)
	}
}

func TestSynthesize_RouterIDsAndLoopbacks(t *testing.T) {
	result := synthesize(t, labDocument())

	wantLoopbacks := map[string]string{
		"PE1": "10.1.1.1",
		"P1":  "10.1.1.2",
		"CE1": "10.2.2.3",
	}
	for hostname, want := range wantLoopbacks {
		rp := result.Plan.ByHostname[hostname]
		if rp.Loopback.String() != want {
			t.Errorf("%s loopback = %s, want %s", hostname, rp.Loopback, want)
		}
	}
}

func TestSynthesize_ExplicitLoopbackReservesID(t *testing.T) {
	doc := labDocument()
	doc.Routers[0].LoopbackAddress = "10.1.1.1/32" // PE1 pins ID 1

	result := synthesize(t, doc)
	if got := result.Plan.ByHostname["P1"].Loopback.String(); got != "10.1.1.2" {
		t.Errorf("P1 loopback = %s, want 10.1.1.2", got)
	}
	if got := result.Plan.ByHostname["PE1"].ID; got != 1 {
		t.Errorf("PE1 ID = %d, want 1", got)
	}
}

func TestSynthesize_ExplicitAddressPinsSubnet(t *testing.T) {
	doc := labDocument()
	doc.Routers[0].Links[0].IPv4 = "192.168.1.6/30" // PE1 side of PE1-P1

	result := synthesize(t, doc)
	if subnet := result.Plan.subnetOf("PE1", "P1"); subnet.String() != "192.168.1.4/30" {
		t.Errorf("subnet = %s, want 192.168.1.4/30", subnet)
	}
	p1 := result.Plan.ByHostname["P1"].interfaceTo("PE1")
	if p1.Address.String() != "192.168.1.5" {
		t.Errorf("P1 address = %s, want 192.168.1.5", p1.Address)
	}
}

func TestSynthesize_OneSidedExplicitAddress(t *testing.T) {
	doc := labDocument()
	// PE1 pins the host that P1, the lexically lower side, would otherwise
	// take; P1 must get the remaining usable host.
	doc.Routers[0].Links[0].IPv4 = "192.168.1.1/30"

	result := synthesize(t, doc)
	pe1 := result.Plan.ByHostname["PE1"].interfaceTo("P1")
	p1 := result.Plan.ByHostname["P1"].interfaceTo("PE1")
	if pe1.Address.String() != "192.168.1.1" {
		t.Errorf("PE1 address = %s, want the explicit 192.168.1.1", pe1.Address)
	}
	if p1.Address.String() != "192.168.1.2" {
		t.Errorf("P1 address = %s, want 192.168.1.2", p1.Address)
	}
}

func TestSynthesize_ConflictingExplicitAddresses(t *testing.T) {
	doc := labDocument()
	doc.Routers[0].Links[0].IPv4 = "192.168.1.1/30"
	doc.Routers[1].Links[0].IPv4 = "192.168.1.6/30" // different /30

	m, err := intent.NewModel(doc)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Synthesize(m)
	if !errors.Is(err, util.ErrAddressConflict) {
		t.Fatalf("error = %v, want ErrAddressConflict", err)
	}
}

func TestSynthesize_ExplicitInterface(t *testing.T) {
	doc := labDocument()
	doc.Routers[0].Links[0].Interface = "GigabitEthernet3/0"

	result := synthesize(t, doc)
	ifaces := result.Plan.ByHostname["PE1"].Interfaces
	if ifaces[0].Name != "GigabitEthernet3/0" {
		t.Errorf("first interface = %s, want GigabitEthernet3/0", ifaces[0].Name)
	}
	// The second link still pops the first free pool slot.
	if ifaces[1].Name != "FastEthernet0/0" {
		t.Errorf("second interface = %s, want FastEthernet0/0", ifaces[1].Name)
	}
}

func TestSynthesize_InterfaceConflict(t *testing.T) {
	doc := labDocument()
	doc.Routers[0].Links[0].Interface = "GigabitEthernet3/0"
	doc.Routers[0].Links[1].Interface = "GigabitEthernet3/0"

	m, err := intent.NewModel(doc)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Synthesize(m)
	if !errors.Is(err, util.ErrInterfaceConflict) {
		t.Fatalf("error = %v, want ErrInterfaceConflict", err)
	}
}

// ============================================================================
// Rendering Tests
// ============================================================================

func TestSynthesize_IBGPFullMesh(t *testing.T) {
	doc := labDocument()
	doc.ASes[0].Routers = append(doc.ASes[0].Routers, "P2")
	doc.Routers = append(doc.Routers, &intent.Router{
		Hostname: "P2",
		ASNumber: 100,
		Links:    []*intent.Link{{Hostname: "P1"}},
	})
	doc.Routers[1].Links = append(doc.Routers[1].Links, &intent.Link{Hostname: "P2"})

	result := synthesize(t, doc)
	for _, hostname := range []string{"PE1", "P1", "P2"} {
		count := strings.Count(result.Configs[hostname], "update-source Loopback0")
		if count != 2 {
			t.Errorf("%s: iBGP session count = %d, want 2 (N-1)", hostname, count)
		}
	}
}

func TestSynthesize_OSPFBlock(t *testing.T) {
	result := synthesize(t, labDocument())
	config := result.Configs["PE1"]

	for _, want := range []string{
		"router ospf 1984",
		" router-id 1.1.1.1",
		" passive-interface GigabitEthernet1/0",
		" network 10.1.1.1 0.0.0.0 area 0",
		" network 192.168.1.0 0.0.0.3 area 0",
	} {
		if !strings.Contains(config, want) {
			t.Errorf("PE1 config missing %q", want)
		}
	}
}

func TestSynthesize_OSPFCostOverride(t *testing.T) {
	doc := labDocument()
	doc.Routers[1].Links[0].OSPFCost = 15

	result := synthesize(t, doc)
	if !strings.Contains(result.Configs["P1"], " ip ospf cost 15") {
		t.Error("P1 config missing explicit OSPF cost")
	}
	if strings.Contains(result.Configs["PE1"], "ip ospf cost") {
		t.Error("PE1 config has a cost statement without an override")
	}
}

func TestSynthesize_VRF(t *testing.T) {
	result := synthesize(t, labDocument())
	config := result.Configs["PE1"]

	for _, want := range []string{
		"ip vrf VRF_GigabitEthernet1-0_CE1",
		" rd 200:1",
		" route-target export 200:10",
		" route-target import 200:10",
		" ip vrf forwarding VRF_GigabitEthernet1-0_CE1",
		" address-family ipv4 vrf VRF_GigabitEthernet1-0_CE1",
		"  redistribute connected",
		"  neighbor 172.16.0.1 remote-as 200",
		"  neighbor 172.16.0.1 activate",
	} {
		if !strings.Contains(config, want) {
			t.Errorf("PE1 config missing %q", want)
		}
	}
	// The client-edge session lives in the VRF family, not the global table.
	if strings.Contains(config, "\n neighbor 172.16.0.1 remote-as 200") {
		t.Error("CE neighbor leaked into the global BGP table")
	}
}

func TestSynthesize_MPLS(t *testing.T) {
	result := synthesize(t, labDocument())
	config := result.Configs["PE1"]

	if !strings.Contains(config, "mpls ldp router-id Loopback0 force") {
		t.Error("PE1 config missing LDP router-id pin")
	}
	if !strings.Contains(config, " mpls ip") {
		t.Error("PE1 config missing mpls ip on the core link")
	}
	// CE1's AS does not run LDP.
	if strings.Contains(result.Configs["CE1"], "mpls") {
		t.Error("CE1 config should carry no MPLS statements")
	}
}

func TestSynthesize_RelationshipPolicy(t *testing.T) {
	result := synthesize(t, labDocument())
	config := result.Configs["CE1"]

	for _, want := range []string{
		"ip community-list standard AS100-ROUTES permit 100:1000",
		"route-map FROM-AS100 permit 10",
		" set local-preference 100",
		" set community 100:1000",
		"route-map General-OUT deny 10",
		" match community AS100-ROUTES",
		"route-map General-OUT permit 20",
		"  neighbor 172.16.0.2 route-map FROM-AS100 in",
		"  neighbor 172.16.0.2 route-map General-OUT out",
	} {
		if !strings.Contains(config, want) {
			t.Errorf("CE1 config missing %q", want)
		}
	}
}

func TestSynthesize_NoOutboundFilterTowardClients(t *testing.T) {
	doc := labDocument()
	// Without a VPN family the CE session lives in the global table, where
	// the client relation still tags inbound routes but must not filter
	// outbound ones.
	doc.Routers[2].VPNFamily = nil

	result := synthesize(t, doc)
	config := result.Configs["PE1"]

	for _, want := range []string{
		"  neighbor 172.16.0.1 route-map FROM-AS200 in",
		"route-map FROM-AS200 permit 10",
		" set local-preference 300",
	} {
		if !strings.Contains(config, want) {
			t.Errorf("PE1 config missing %q", want)
		}
	}
	if strings.Contains(config, "neighbor 172.16.0.1 route-map General-OUT out") {
		t.Error("PE1 applies General-OUT toward its client")
	}
}

func TestSynthesize_UnusedInterfacesShutdown(t *testing.T) {
	result := synthesize(t, labDocument())

	if !strings.Contains(result.Configs["P1"], "interface GigabitEthernet6/0\n shutdown") {
		t.Error("P1 config missing shutdown on unused pool interface")
	}
}

func TestSynthesize_RendersParseable(t *testing.T) {
	result := synthesize(t, labDocument())

	for hostname, text := range result.Configs {
		sections, err := confparse.Parse(text)
		if err != nil {
			t.Fatalf("%s: rendered config does not parse: %v", hostname, err)
		}
		bgp := confparse.Find(sections, "router bgp "+map[string]string{
			"PE1": "100", "P1": "100", "CE1": "200"}[hostname])
		if bgp == nil {
			t.Errorf("%s: no BGP section in parsed config", hostname)
		}
		if confparse.Find(sections, "interface Loopback0") == nil {
			t.Errorf("%s: no Loopback0 section in parsed config", hostname)
		}
	}
}
