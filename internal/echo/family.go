//go:build linux

package echo

import (
	"fmt"
	"strings"
)

// Family selects the IP protocol family of the bound socket. FamilyNone
// doubles as the absent marker on decoded destination metadata.
type Family int

const (
	FamilyNone Family = 0
	FamilyIPv4 Family = 4
	FamilyIPv6 Family = 6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	case FamilyNone:
		return "none"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Network returns the net package network name used to bind. IPv6 maps
// to "udp" so the wildcard socket stays dual stack, the kernel reports
// IPv4 deliveries on it as v4-mapped addresses.
func (f Family) Network() string {
	if f == FamilyIPv4 {
		return "udp4"
	}
	return "udp"
}

// ParseFamily maps a config value onto a Family.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ipv4", "4", "inet":
		return FamilyIPv4, nil
	case "ipv6", "6", "inet6":
		return FamilyIPv6, nil
	default:
		return FamilyNone, fmt.Errorf("unknown address family %q", s)
	}
}
