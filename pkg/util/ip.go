package util

import (
	"fmt"
	"net/netip"
)

// HostRange returns the first and last usable host addresses of cidr along
// with the canonical prefix.
//
//	10.0.0.0/24   -> 10.0.0.1 .. 10.0.0.254  (network and broadcast excluded)
//	10.0.0.0/31   -> 10.0.0.0 .. 10.0.0.1    (RFC 3021 point-to-point)
//	10.0.0.7/32   -> 10.0.0.7 .. 10.0.0.7
//	fd00::/64     -> fd00::1  .. fd00::ffff:ffff:ffff:ffff
//
// IPv6 has no broadcast address; only the subnet-router anycast address is
// skipped. A prefix with host bits set is rejected.
func HostRange(cidr string) (start, end netip.Addr, prefix netip.Prefix, err error) {
	prefix, err = netip.ParsePrefix(cidr)
	if err != nil {
		return start, end, prefix, NewArgumentError("CIDR", cidr, err)
	}
	if masked := prefix.Masked(); masked != prefix {
		return start, end, prefix, NewArgumentError("CIDR", cidr,
			fmt.Errorf("host bits set, did you mean %s", masked))
	}

	first := prefix.Addr()
	last := LastAddr(prefix)

	switch hostBits := first.BitLen() - prefix.Bits(); {
	case hostBits == 0:
		return first, first, prefix, nil
	case hostBits == 1:
		return first, last, prefix, nil
	case first.Is4():
		return first.Next(), last.Prev(), prefix, nil
	default:
		return first.Next(), last, prefix, nil
	}
}

// LastAddr returns the highest address contained in prefix.
func LastAddr(prefix netip.Prefix) netip.Addr {
	b := prefix.Masked().Addr().AsSlice()
	for i := prefix.Bits(); i < len(b)*8; i++ {
		b[i/8] |= 0x80 >> (i % 8)
	}
	addr, _ := netip.AddrFromSlice(b)
	return addr
}

// ParseAddress validates a single literal IPv4 or IPv6 address.
func ParseAddress(ip string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.Addr{}, NewArgumentError("IP address", ip, err)
	}
	return addr, nil
}
