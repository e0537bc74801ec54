// Package ipam allocates transport subnets and loopback addresses from
// per-AS prefix pools.
//
// Allocation is deterministic and monotonic: blocks are handed out in
// ascending numeric order, a block once assigned is never reassigned within
// a run, and explicit user overrides are reserved before any automatic scan
// so the two can never collide.
package ipam

import (
	"fmt"
	"net"

	"github.com/routelab-net/routelab/pkg/util"
)

// BlockPrefixLen is the transport subnet size for point-to-point links.
const BlockPrefixLen = 30

const blockSize = 1 << (32 - BlockPrefixLen)

// Pool hands out consecutive /30 transport blocks from one AS prefix.
type Pool struct {
	prefix   *net.IPNet
	asNumber int
	cursor   uint32          // block offset of the next scan position
	taken    map[uint32]bool // base addresses reserved or already allocated
}

// NewPool creates a transport pool over an AS ipv4_prefix.
func NewPool(prefix *net.IPNet, asNumber int) *Pool {
	return &Pool{
		prefix:   prefix,
		asNumber: asNumber,
		taken:    make(map[uint32]bool),
	}
}

// ContainingBlock returns the /30 that contains ip, aligned down to the
// block boundary.
func ContainingBlock(ip net.IP) *net.IPNet {
	base := util.IPToUint32(ip) &^ (blockSize - 1)
	return &net.IPNet{IP: util.Uint32ToIP(base), Mask: net.CIDRMask(BlockPrefixLen, 32)}
}

// Reserve marks a block as taken so automatic allocation skips it. Used for
// user-pinned subnets before any AllocateBlock call. Reserving the same
// block twice is harmless; reserving a block outside the pool is rejected.
func (p *Pool) Reserve(block *net.IPNet) error {
	if !util.PrefixContains(p.prefix, block) {
		return fmt.Errorf("block %s outside AS %d prefix %s", block, p.asNumber, p.prefix)
	}
	p.taken[util.IPToUint32(block.IP)] = true
	return nil
}

// AllocateBlock returns the next unused /30, scanning in ascending order
// and skipping reserved blocks. local and remote name the link endpoints
// for error context.
func (p *Pool) AllocateBlock(local, remote string) (*net.IPNet, error) {
	start := util.IPToUint32(p.prefix.IP)
	ones, _ := p.prefix.Mask.Size()
	total := uint32(1) << (32 - ones)

	for ; p.cursor*blockSize < total; p.cursor++ {
		base := start + p.cursor*blockSize
		if p.taken[base] {
			continue
		}
		p.taken[base] = true
		p.cursor++
		return &net.IPNet{IP: util.Uint32ToIP(base), Mask: net.CIDRMask(BlockPrefixLen, 32)}, nil
	}
	return nil, util.NewAllocationError(util.ErrAddressSpaceExhausted, p.asNumber, local, remote,
		fmt.Sprintf("no /%d left in %s", BlockPrefixLen, p.prefix))
}

// HostAddresses returns the two usable host addresses of a /30 block, in
// ascending order. The lexically lower endpoint takes the first.
func HostAddresses(block *net.IPNet) (net.IP, net.IP) {
	base := util.IPToUint32(block.IP)
	return util.Uint32ToIP(base + 1), util.Uint32ToIP(base + 2)
}

// LoopbackPool maps router IDs onto /32 addresses inside an AS loopback
// prefix.
type LoopbackPool struct {
	prefix   *net.IPNet
	asNumber int
}

// NewLoopbackPool creates a loopback pool over an AS ipv4_loopback_prefix.
func NewLoopbackPool(prefix *net.IPNet, asNumber int) *LoopbackPool {
	return &LoopbackPool{prefix: prefix, asNumber: asNumber}
}

// AddressForID returns prefix base + id, exhaustion-checked against the
// prefix's broadcast boundary.
func (p *LoopbackPool) AddressForID(id int) (net.IP, error) {
	ones, _ := p.prefix.Mask.Size()
	total := uint32(1) << (32 - ones)
	if id <= 0 || uint32(id) >= total-1 {
		return nil, &util.AllocationError{
			ASNumber: p.asNumber,
			Detail:   fmt.Sprintf("router ID %d does not fit loopback prefix %s", id, p.prefix),
			Kind:     util.ErrAddressSpaceExhausted,
		}
	}
	return util.IPAdd(p.prefix.IP, uint32(id)), nil
}

// IDCounter assigns router IDs monotonically, skipping IDs reserved by
// explicit loopback overrides. IDs start at 1.
type IDCounter struct {
	next     int
	reserved map[int]bool
}

// NewIDCounter creates a counter starting at 1.
func NewIDCounter() *IDCounter {
	return &IDCounter{next: 1, reserved: make(map[int]bool)}
}

// Reserve removes an ID from the automatic sequence.
func (c *IDCounter) Reserve(id int) {
	c.reserved[id] = true
}

// Next returns the lowest unreserved ID not yet handed out.
func (c *IDCounter) Next() int {
	for c.reserved[c.next] {
		c.next++
	}
	id := c.next
	c.next++
	return id
}
