//go:build linux

package echo

import (
	"fmt"
	"net/netip"
)

// Responder writes replies over the listener socket. When destination
// metadata is attached the kernel sources the reply from the address the
// request was delivered to, instead of picking one by route.
type Responder struct {
	l   *Listener
	oob []byte
}

func NewResponder(l *Listener) *Responder {
	return &Responder{l: l, oob: make([]byte, 0, ControlBufferSize)}
}

// Reply echoes payload back to peer. The reply carries exactly the
// received bytes; a short write is an error. Zero length payloads are
// sent as empty datagrams.
func (r *Responder) Reply(payload []byte, peer netip.AddrPort, info PktInfo) error {
	oob := r.oob[:0]
	if info.Present() {
		oob = info.AppendTo(oob)
	}
	n, _, err := r.l.conn.WriteMsgUDPAddrPort(payload, oob, peer)
	if err != nil {
		return fmt.Errorf("reply to %s: %w", peer, err)
	}
	if n != len(payload) {
		return fmt.Errorf("short reply to %s: %d of %d bytes", peer, n, len(payload))
	}
	return nil
}
