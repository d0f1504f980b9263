//go:build linux

package echo

import (
	"net"
	"net/netip"
	"testing"
	"time"
)

func TestReplyWithoutInfo(t *testing.T) {
	l, err := Listen(FamilyIPv4, 0)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer l.Close()

	// The receiving end stands in for the original sender
	peerConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to bind peer: %v", err)
	}
	defer peerConn.Close()
	peerConn.SetDeadline(time.Now().Add(2 * time.Second))

	peer := peerConn.LocalAddr().(*net.UDPAddr).AddrPort()

	r := NewResponder(l)
	if err := r.Reply([]byte("echoed"), peer, PktInfo{}); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	buf := make([]byte, 64)
	n, _, err := peerConn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("peer read failed: %v", err)
	}
	if string(buf[:n]) != "echoed" {
		t.Errorf("peer got %q, want echoed", buf[:n])
	}
}

func TestReplySourcedFromInfo(t *testing.T) {
	l, err := Listen(FamilyIPv4, 0)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer l.Close()

	peerConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to bind peer: %v", err)
	}
	defer peerConn.Close()
	peerConn.SetDeadline(time.Now().Add(2 * time.Second))

	peer := peerConn.LocalAddr().(*net.UDPAddr).AddrPort()

	// Ask the kernel to source the reply from a specific loopback alias
	info := PktInfo{
		Family:    FamilyIPv4,
		Dst:       netip.MustParseAddr("127.0.0.2"),
		HeaderDst: netip.MustParseAddr("127.0.0.2"),
	}

	r := NewResponder(l)
	if err := r.Reply([]byte("x"), peer, info); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	buf := make([]byte, 64)
	_, from, err := peerConn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("peer read failed: %v", err)
	}
	if !from.IP.Equal(net.IPv4(127, 0, 0, 2)) {
		t.Errorf("reply sourced from %v, want 127.0.0.2", from.IP)
	}
}

func TestReplyZeroLength(t *testing.T) {
	l, err := Listen(FamilyIPv4, 0)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer l.Close()

	peerConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to bind peer: %v", err)
	}
	defer peerConn.Close()
	peerConn.SetDeadline(time.Now().Add(2 * time.Second))

	peer := peerConn.LocalAddr().(*net.UDPAddr).AddrPort()

	r := NewResponder(l)
	if err := r.Reply(nil, peer, PktInfo{}); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	buf := make([]byte, 64)
	n, _, err := peerConn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("peer read failed: %v", err)
	}
	if n != 0 {
		t.Errorf("peer got %d bytes, want an empty datagram", n)
	}
}
