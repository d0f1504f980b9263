//go:build linux

package echo

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"unsafe"

	"golang.org/x/sys/unix"

	"firestige.xyz/asio/internal/log"
)

// PktInfo is the destination metadata of one received datagram, decoded
// from the ancillary records the kernel attaches once the packet info
// option is enabled. The zero value means no metadata was present.
type PktInfo struct {
	Family Family
	// Dst is the local address the datagram was delivered to. A reply
	// sourced from it comes from the address the peer actually talked
	// to, whichever interface carries it. IPv4 metadata always carries
	// HeaderDst as well, the destination of the IP header, which
	// differs from Dst for broadcast and multicast deliveries.
	Dst       netip.Addr
	HeaderDst netip.Addr
	// Ifindex is the interface the datagram arrived on.
	Ifindex int
}

// Present reports whether metadata was decoded.
func (pi PktInfo) Present() bool { return pi.Family != FamilyNone }

func (pi PktInfo) String() string {
	switch pi.Family {
	case FamilyIPv4:
		return fmt.Sprintf("dst=%s hdr=%s if=%d", pi.Dst, pi.HeaderDst, pi.Ifindex)
	case FamilyIPv6:
		return fmt.Sprintf("dst=%s if=%d", pi.Dst, pi.Ifindex)
	default:
		return "absent"
	}
}

// ParseDestInfo scans a raw ancillary block for packet info records and
// returns the decoded metadata plus the number of records it could not
// use. When several packet info records are present the last one wins,
// whatever its family; a dual stack socket may deliver either kind.
// Unknown or short records are logged and skipped, never an error: a
// datagram without usable metadata is still echoed.
func ParseDestInfo(oob []byte, lg log.Logger) (PktInfo, int) {
	if len(oob) == 0 {
		return PktInfo{}, 0
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		lg.WithError(err).Warn("malformed ancillary data block")
		return PktInfo{}, 1
	}
	var info PktInfo
	anomalies := 0
	for _, m := range msgs {
		switch {
		case m.Header.Level == unix.IPPROTO_IP && m.Header.Type == unix.IP_PKTINFO:
			pi, ok := pktinfo4(m.Data)
			if !ok {
				lg.Warnf("short IP_PKTINFO record, len=%d", len(m.Data))
				anomalies++
				continue
			}
			info = pi
		case m.Header.Level == unix.IPPROTO_IPV6 && m.Header.Type == unix.IPV6_PKTINFO:
			pi, ok := pktinfo6(m.Data)
			if !ok {
				lg.Warnf("short IPV6_PKTINFO record, len=%d", len(m.Data))
				anomalies++
				continue
			}
			info = pi
		default:
			lg.Warnf("unknown ancillary data, len=%d, level=%d, type=%d",
				m.Header.Len, m.Header.Level, m.Header.Type)
			anomalies++
		}
	}
	return info, anomalies
}

func pktinfo4(data []byte) (PktInfo, bool) {
	if len(data) < unix.SizeofInet4Pktinfo {
		return PktInfo{}, false
	}
	return PktInfo{
		Family:    FamilyIPv4,
		Ifindex:   int(int32(binary.NativeEndian.Uint32(data[0:4]))),
		Dst:       netip.AddrFrom4([4]byte(data[4:8])),
		HeaderDst: netip.AddrFrom4([4]byte(data[8:12])),
	}, true
}

func pktinfo6(data []byte) (PktInfo, bool) {
	if len(data) < unix.SizeofInet6Pktinfo {
		return PktInfo{}, false
	}
	// v4-mapped addresses are kept as is, the reply path needs the
	// exact form the kernel reported.
	return PktInfo{
		Family:  FamilyIPv6,
		Dst:     netip.AddrFrom16([16]byte(data[0:16])),
		Ifindex: int(binary.NativeEndian.Uint32(data[16:20])),
	}, true
}

// AppendTo appends the control message that makes the kernel source a
// reply from pi.Dst. Absent metadata appends nothing. dst must point at
// the start of a control buffer, cmsg headers are alignment sensitive.
func (pi PktInfo) AppendTo(dst []byte) []byte {
	switch pi.Family {
	case FamilyIPv4:
		off := len(dst)
		dst = append(dst, make([]byte, unix.CmsgSpace(unix.SizeofInet4Pktinfo))...)
		b := dst[off:]
		putCmsghdr(b, unix.IPPROTO_IP, unix.IP_PKTINFO, unix.SizeofInet4Pktinfo)
		data := b[unix.CmsgLen(0):]
		binary.NativeEndian.PutUint32(data[0:4], uint32(int32(pi.Ifindex)))
		a := pi.Dst.As4()
		copy(data[4:8], a[:])
		h := pi.HeaderDst.As4()
		copy(data[8:12], h[:])
		return dst
	case FamilyIPv6:
		off := len(dst)
		dst = append(dst, make([]byte, unix.CmsgSpace(unix.SizeofInet6Pktinfo))...)
		b := dst[off:]
		putCmsghdr(b, unix.IPPROTO_IPV6, unix.IPV6_PKTINFO, unix.SizeofInet6Pktinfo)
		data := b[unix.CmsgLen(0):]
		a := pi.Dst.As16()
		copy(data[0:16], a[:])
		binary.NativeEndian.PutUint32(data[16:20], uint32(pi.Ifindex))
		return dst
	default:
		return dst
	}
}

func putCmsghdr(b []byte, level, typ int32, dataLen int) {
	h := (*unix.Cmsghdr)(unsafe.Pointer(&b[0]))
	h.Level = level
	h.Type = typ
	h.SetLen(unix.CmsgLen(dataLen))
}
