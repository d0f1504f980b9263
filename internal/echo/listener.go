//go:build linux

package echo

import (
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/sys/unix"
)

// Buffer capacities of the receive path. Both are fixed; longer
// datagrams or ancillary blocks are truncated by the kernel and the
// truncation is reported through the receive flags.
const (
	MaxDatagramSize   = 8192
	ControlBufferSize = 512
)

// Datagram is one received message. Payload and OOB alias the receive
// buffers and are only valid until the next Receive on the listener.
type Datagram struct {
	Payload          []byte
	OOB              []byte
	Peer             netip.AddrPort
	PayloadTruncated bool
	ControlTruncated bool
}

// Listener owns the bound socket and its packet info option.
type Listener struct {
	conn     *net.UDPConn
	family   Family
	destInfo bool
}

// Listen binds a wildcard UDP socket for the family. Port 0 lets the
// kernel pick one, tests rely on that.
func Listen(family Family, port int) (*Listener, error) {
	conn, err := net.ListenUDP(family.Network(), &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("bind %s port %d: %w", family, port, err)
	}
	return &Listener{conn: conn, family: family}, nil
}

// EnableDestinationInfo asks the kernel to attach packet info records to
// received datagrams. Callers may treat failure as non fatal: without
// the option the service still echoes, replies just use default source
// address selection.
func (l *Listener) EnableDestinationInfo() error {
	sc, err := l.conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("raw control handle: %w", err)
	}
	var serr error
	cerr := sc.Control(func(fd uintptr) {
		if l.family == FamilyIPv4 {
			serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_PKTINFO, 1)
			return
		}
		// One option covers the dual stack socket, v4 deliveries are
		// reported as v4-mapped IPV6_PKTINFO records.
		serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_RECVPKTINFO, 1)
	})
	if cerr != nil {
		return fmt.Errorf("raw control: %w", cerr)
	}
	if serr != nil {
		return fmt.Errorf("enable packet info on %s socket: %w", l.family, serr)
	}
	l.destInfo = true
	return nil
}

// DestinationInfoEnabled reports whether EnableDestinationInfo took
// effect, i.e. whether the service runs with or without address
// discovery.
func (l *Listener) DestinationInfoEnabled() bool { return l.destInfo }

// Receive blocks for the next datagram. payload and oob are caller
// owned buffers reused across calls; the returned Datagram aliases them.
func (l *Listener) Receive(payload, oob []byte) (Datagram, error) {
	n, oobn, flags, peer, err := l.conn.ReadMsgUDPAddrPort(payload, oob)
	if err != nil {
		return Datagram{}, err
	}
	return Datagram{
		Payload:          payload[:n],
		OOB:              oob[:oobn],
		Peer:             peer,
		PayloadTruncated: flags&unix.MSG_TRUNC != 0,
		ControlTruncated: flags&unix.MSG_CTRUNC != 0,
	}, nil
}

// Family returns the bound family.
func (l *Listener) Family() Family { return l.family }

// LocalAddr returns the bound address, with the kernel assigned port
// filled in.
func (l *Listener) LocalAddr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// Close unblocks a pending Receive with net.ErrClosed.
func (l *Listener) Close() error { return l.conn.Close() }
