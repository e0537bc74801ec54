package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParseIPv4CIDR parses an IPv4 prefix in CIDR notation and returns the
// canonical network (host bits zeroed).
func ParseIPv4CIDR(cidr string) (*net.IPNet, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR notation: %s", cidr)
	}
	if ip.To4() == nil {
		return nil, fmt.Errorf("not an IPv4 prefix: %s", cidr)
	}
	return ipNet, nil
}

// IPToUint32 converts an IPv4 address to its numeric value.
func IPToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}

// Uint32ToIP converts a numeric value back to an IPv4 address.
func Uint32ToIP(v uint32) net.IP {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).To4()
}

// IPAdd returns ip + n.
func IPAdd(ip net.IP, n uint32) net.IP {
	return Uint32ToIP(IPToUint32(ip) + n)
}

// ComputeNeighborIP returns the peer IP for a /30 point-to-point subnet.
// Returns nil for the network or broadcast address.
func ComputeNeighborIP(ip net.IP) net.IP {
	v4 := ip.To4()
	if v4 == nil {
		return nil
	}
	switch v4[3] & 0x03 {
	case 1:
		return IPAdd(v4, 1)
	case 2:
		return Uint32ToIP(IPToUint32(v4) - 1)
	}
	return nil
}

// MaskString returns the dotted-decimal form of a prefix length
// (30 -> "255.255.255.252").
func MaskString(prefixLen int) string {
	mask := net.CIDRMask(prefixLen, 32)
	return net.IP(mask).String()
}

// WildcardString returns the OSPF wildcard form of a prefix length
// (30 -> "0.0.0.3").
func WildcardString(prefixLen int) string {
	mask := net.CIDRMask(prefixLen, 32)
	parts := make([]string, 4)
	for i := 0; i < 4; i++ {
		parts[i] = strconv.Itoa(int(^mask[i]))
	}
	return strings.Join(parts, ".")
}

// SplitIPMask splits CIDR notation into the IP part and the mask length.
// Returns the input unchanged with mask 0 if no mask is present.
func SplitIPMask(cidr string) (string, int) {
	parts := strings.Split(cidr, "/")
	if len(parts) != 2 {
		return cidr, 0
	}
	maskLen, err := strconv.Atoi(parts[1])
	if err != nil {
		return parts[0], 0
	}
	return parts[0], maskLen
}

// PrefixContains reports whether prefix contains the whole of sub.
func PrefixContains(prefix, sub *net.IPNet) bool {
	subOnes, _ := sub.Mask.Size()
	prefixOnes, _ := prefix.Mask.Size()
	return prefix.Contains(sub.IP) && subOnes >= prefixOnes
}

// PrefixesOverlap reports whether two IPv4 prefixes share any address.
func PrefixesOverlap(a, b *net.IPNet) bool {
	return a.Contains(b.IP) || b.Contains(a.IP)
}

const maxASN = 4294967295 // max uint32, 4-byte ASN range

// ValidateASN checks if an AS number is valid (1 to 4294967295).
func ValidateASN(asn int) error {
	if asn < 1 || asn > maxASN {
		return fmt.Errorf("AS number must be between 1 and %d, got %d", maxASN, asn)
	}
	return nil
}
