//go:build linux

package echo

import (
	"encoding/binary"
	"net/netip"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"firestige.xyz/asio/internal/log"
)

func TestParseDestInfo_Empty(t *testing.T) {
	info, anomalies := ParseDestInfo(nil, log.Discard())
	if info.Present() {
		t.Errorf("expected absent info, got %v", info)
	}
	if anomalies != 0 {
		t.Errorf("anomalies = %d, want 0", anomalies)
	}
}

func TestParseDestInfo_IPv4RoundTrip(t *testing.T) {
	in := PktInfo{
		Family:    FamilyIPv4,
		Dst:       netip.MustParseAddr("10.0.0.5"),
		HeaderDst: netip.MustParseAddr("10.0.0.255"),
		Ifindex:   2,
	}

	oob := in.AppendTo(nil)
	got, anomalies := ParseDestInfo(oob, log.Discard())

	if anomalies != 0 {
		t.Errorf("anomalies = %d, want 0", anomalies)
	}
	if got != in {
		t.Errorf("decoded = %+v, want %+v", got, in)
	}
}

func TestParseDestInfo_IPv6RoundTrip(t *testing.T) {
	in := PktInfo{
		Family:  FamilyIPv6,
		Dst:     netip.MustParseAddr("2001:db8::1"),
		Ifindex: 3,
	}

	oob := in.AppendTo(nil)
	got, anomalies := ParseDestInfo(oob, log.Discard())

	if anomalies != 0 {
		t.Errorf("anomalies = %d, want 0", anomalies)
	}
	if got != in {
		t.Errorf("decoded = %+v, want %+v", got, in)
	}
}

func TestParseDestInfo_V4MappedPreserved(t *testing.T) {
	// A dual stack socket reports IPv4 deliveries as v4-mapped
	// IPV6_PKTINFO records. The mapped form must survive the round trip,
	// the reply path hands it back to the kernel untouched.
	in := PktInfo{
		Family:  FamilyIPv6,
		Dst:     netip.MustParseAddr("::ffff:192.0.2.7"),
		Ifindex: 1,
	}

	oob := in.AppendTo(nil)
	got, anomalies := ParseDestInfo(oob, log.Discard())

	if anomalies != 0 {
		t.Errorf("anomalies = %d, want 0", anomalies)
	}
	if !got.Dst.Is4In6() {
		t.Errorf("decoded dst = %v, mapped form not preserved", got.Dst)
	}
	if got != in {
		t.Errorf("decoded = %+v, want %+v", got, in)
	}
}

func TestParseDestInfo_LastWins(t *testing.T) {
	v4 := PktInfo{
		Family:    FamilyIPv4,
		Dst:       netip.MustParseAddr("192.0.2.1"),
		HeaderDst: netip.MustParseAddr("192.0.2.1"),
		Ifindex:   1,
	}
	v6 := PktInfo{
		Family:  FamilyIPv6,
		Dst:     netip.MustParseAddr("2001:db8::2"),
		Ifindex: 2,
	}

	oob := v4.AppendTo(nil)
	oob = v6.AppendTo(oob)
	got, anomalies := ParseDestInfo(oob, log.Discard())
	if anomalies != 0 {
		t.Errorf("anomalies = %d, want 0", anomalies)
	}
	if got != v6 {
		t.Errorf("decoded = %+v, want the later record %+v", got, v6)
	}

	// Reverse order, the v4 record wins
	oob = v6.AppendTo(nil)
	oob = v4.AppendTo(oob)
	got, _ = ParseDestInfo(oob, log.Discard())
	if got != v4 {
		t.Errorf("decoded = %+v, want the later record %+v", got, v4)
	}
}

func TestParseDestInfo_LastWinsSameFamily(t *testing.T) {
	first := PktInfo{
		Family:    FamilyIPv4,
		Dst:       netip.MustParseAddr("10.0.0.1"),
		HeaderDst: netip.MustParseAddr("10.0.0.1"),
		Ifindex:   1,
	}
	second := PktInfo{
		Family:    FamilyIPv4,
		Dst:       netip.MustParseAddr("10.0.0.2"),
		HeaderDst: netip.MustParseAddr("10.0.0.2"),
		Ifindex:   2,
	}

	oob := first.AppendTo(nil)
	oob = second.AppendTo(oob)

	got, anomalies := ParseDestInfo(oob, log.Discard())
	if anomalies != 0 {
		t.Errorf("anomalies = %d, want 0", anomalies)
	}
	if got != second {
		t.Errorf("decoded = %+v, want the second record %+v", got, second)
	}
}

func TestParseDestInfo_UnknownRecord(t *testing.T) {
	oob := make([]byte, unix.CmsgSpace(8))
	putCmsghdr(oob, unix.SOL_SOCKET, unix.SO_TIMESTAMP, 8)

	info, anomalies := ParseDestInfo(oob, log.Discard())
	if info.Present() {
		t.Errorf("expected absent info, got %v", info)
	}
	if anomalies != 1 {
		t.Errorf("anomalies = %d, want 1", anomalies)
	}
}

func TestParseDestInfo_UnknownThenValid(t *testing.T) {
	unknown := make([]byte, unix.CmsgSpace(4))
	putCmsghdr(unknown, unix.SOL_SOCKET, unix.SO_RCVBUF, 4)

	v4 := PktInfo{
		Family:    FamilyIPv4,
		Dst:       netip.MustParseAddr("10.1.2.3"),
		HeaderDst: netip.MustParseAddr("10.1.2.3"),
		Ifindex:   4,
	}
	oob := append(unknown, v4.AppendTo(nil)...)

	got, anomalies := ParseDestInfo(oob, log.Discard())
	if anomalies != 1 {
		t.Errorf("anomalies = %d, want 1", anomalies)
	}
	if got != v4 {
		t.Errorf("decoded = %+v, want %+v", got, v4)
	}
}

func TestParseDestInfo_ShortRecord(t *testing.T) {
	// Correct level and type, truncated body
	oob := make([]byte, unix.CmsgSpace(4))
	putCmsghdr(oob, unix.IPPROTO_IP, unix.IP_PKTINFO, 4)

	info, anomalies := ParseDestInfo(oob, log.Discard())
	if info.Present() {
		t.Errorf("expected absent info, got %v", info)
	}
	if anomalies != 1 {
		t.Errorf("anomalies = %d, want 1", anomalies)
	}
}

func TestParseDestInfo_Garbage(t *testing.T) {
	info, anomalies := ParseDestInfo([]byte{1, 2, 3}, log.Discard())
	if info.Present() {
		t.Errorf("expected absent info, got %v", info)
	}
	if anomalies != 1 {
		t.Errorf("anomalies = %d, want 1", anomalies)
	}
}

func TestAppendTo_Absent(t *testing.T) {
	if got := (PktInfo{}).AppendTo(nil); len(got) != 0 {
		t.Errorf("absent info appended %d bytes", len(got))
	}
}

// TestAppendTo_WireLayout pins the in_pktinfo byte layout the kernel
// expects: ifindex, spec_dst, then the header destination.
func TestAppendTo_WireLayout(t *testing.T) {
	in := PktInfo{
		Family:    FamilyIPv4,
		Dst:       netip.AddrFrom4([4]byte{10, 0, 0, 5}),
		HeaderDst: netip.AddrFrom4([4]byte{10, 0, 0, 255}),
		Ifindex:   2,
	}

	b := in.AppendTo(nil)
	if len(b) != unix.CmsgSpace(unix.SizeofInet4Pktinfo) {
		t.Fatalf("len = %d, want %d", len(b), unix.CmsgSpace(unix.SizeofInet4Pktinfo))
	}

	h := (*unix.Cmsghdr)(unsafe.Pointer(&b[0]))
	if h.Level != unix.IPPROTO_IP || h.Type != unix.IP_PKTINFO {
		t.Errorf("header = level %d type %d, want IPPROTO_IP/IP_PKTINFO", h.Level, h.Type)
	}
	if int(h.Len) != unix.CmsgLen(unix.SizeofInet4Pktinfo) {
		t.Errorf("header len = %d, want %d", h.Len, unix.CmsgLen(unix.SizeofInet4Pktinfo))
	}

	data := b[unix.CmsgLen(0):]
	if ifindex := binary.NativeEndian.Uint32(data[0:4]); ifindex != 2 {
		t.Errorf("ifindex bytes = %d, want 2", ifindex)
	}
	if got := [4]byte(data[4:8]); got != [4]byte{10, 0, 0, 5} {
		t.Errorf("spec_dst bytes = %v", got)
	}
	if got := [4]byte(data[8:12]); got != [4]byte{10, 0, 0, 255} {
		t.Errorf("header dst bytes = %v", got)
	}
}
