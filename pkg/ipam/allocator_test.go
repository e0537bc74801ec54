package ipam

import (
	"errors"
	"net"
	"testing"

	"github.com/routelab-net/routelab/pkg/util"
)

func mustCIDR(t *testing.T, cidr string) *net.IPNet {
	t.Helper()
	ipNet, err := util.ParseIPv4CIDR(cidr)
	if err != nil {
		t.Fatal(err)
	}
	return ipNet
}

// ============================================================================
// Transport Pool Tests
// ============================================================================

func TestPool_SequentialBlocks(t *testing.T) {
	p := NewPool(mustCIDR(t, "192.168.1.0/24"), 100)

	want := []string{"192.168.1.0/30", "192.168.1.4/30", "192.168.1.8/30"}
	for i, w := range want {
		block, err := p.AllocateBlock("A", "B")
		if err != nil {
			t.Fatalf("AllocateBlock #%d error = %v", i, err)
		}
		if block.String() != w {
			t.Errorf("block #%d = %s, want %s", i, block, w)
		}
	}
}

func TestPool_SkipsReserved(t *testing.T) {
	p := NewPool(mustCIDR(t, "192.168.1.0/24"), 100)
	if err := p.Reserve(mustCIDR(t, "192.168.1.0/30")); err != nil {
		t.Fatal(err)
	}
	if err := p.Reserve(mustCIDR(t, "192.168.1.8/30")); err != nil {
		t.Fatal(err)
	}

	block, err := p.AllocateBlock("A", "B")
	if err != nil {
		t.Fatal(err)
	}
	if block.String() != "192.168.1.4/30" {
		t.Errorf("block = %s, want 192.168.1.4/30", block)
	}
	block, err = p.AllocateBlock("A", "C")
	if err != nil {
		t.Fatal(err)
	}
	if block.String() != "192.168.1.12/30" {
		t.Errorf("block = %s, want 192.168.1.12/30", block)
	}
}

func TestPool_Exhaustion(t *testing.T) {
	p := NewPool(mustCIDR(t, "10.0.0.0/29"), 100) // room for exactly two /30s

	for i := 0; i < 2; i++ {
		if _, err := p.AllocateBlock("A", "B"); err != nil {
			t.Fatalf("AllocateBlock #%d error = %v", i, err)
		}
	}
	_, err := p.AllocateBlock("A", "C")
	if !errors.Is(err, util.ErrAddressSpaceExhausted) {
		t.Fatalf("error = %v, want ErrAddressSpaceExhausted", err)
	}
}

func TestPool_ReserveOutsidePrefix(t *testing.T) {
	p := NewPool(mustCIDR(t, "192.168.1.0/24"), 100)
	if err := p.Reserve(mustCIDR(t, "10.0.0.0/30")); err == nil {
		t.Error("Reserve outside prefix expected error")
	}
}

func TestContainingBlock(t *testing.T) {
	tests := []struct {
		ip   string
		want string
	}{
		{"192.168.1.1", "192.168.1.0/30"},
		{"192.168.1.6", "192.168.1.4/30"},
		{"192.168.1.37", "192.168.1.36/30"},
	}
	for _, tt := range tests {
		if got := ContainingBlock(net.ParseIP(tt.ip)); got.String() != tt.want {
			t.Errorf("ContainingBlock(%s) = %s, want %s", tt.ip, got, tt.want)
		}
	}
}

func TestHostAddresses(t *testing.T) {
	first, second := HostAddresses(mustCIDR(t, "192.168.1.4/30"))
	if first.String() != "192.168.1.5" || second.String() != "192.168.1.6" {
		t.Errorf("HostAddresses = %s, %s, want 192.168.1.5, 192.168.1.6", first, second)
	}
}

// ============================================================================
// Loopback Pool Tests
// ============================================================================

func TestLoopbackPool_AddressForID(t *testing.T) {
	p := NewLoopbackPool(mustCIDR(t, "10.1.1.0/24"), 100)

	addr, err := p.AddressForID(3)
	if err != nil {
		t.Fatal(err)
	}
	if addr.String() != "10.1.1.3" {
		t.Errorf("AddressForID(3) = %s, want 10.1.1.3", addr)
	}
}

func TestLoopbackPool_Exhaustion(t *testing.T) {
	p := NewLoopbackPool(mustCIDR(t, "10.1.1.0/29"), 100)

	if _, err := p.AddressForID(6); err != nil {
		t.Errorf("AddressForID(6) error = %v", err)
	}
	_, err := p.AddressForID(7) // broadcast of the /29
	if !errors.Is(err, util.ErrAddressSpaceExhausted) {
		t.Fatalf("error = %v, want ErrAddressSpaceExhausted", err)
	}
}

// ============================================================================
// Router ID Counter Tests
// ============================================================================

func TestIDCounter_Sequence(t *testing.T) {
	c := NewIDCounter()
	for want := 1; want <= 3; want++ {
		if got := c.Next(); got != want {
			t.Errorf("Next() = %d, want %d", got, want)
		}
	}
}

func TestIDCounter_SkipsReserved(t *testing.T) {
	c := NewIDCounter()
	c.Reserve(1)
	c.Reserve(3)

	want := []int{2, 4, 5}
	for i, w := range want {
		if got := c.Next(); got != w {
			t.Errorf("Next() #%d = %d, want %d", i, got, w)
		}
	}
}
