//go:build linux

package echo

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"firestige.xyz/asio/internal/log"
	"firestige.xyz/asio/internal/metrics"
)

// Server runs the receive, decode, reply loop over one listener. The
// loop is strictly sequential and reuses its buffers, one datagram is in
// flight at a time.
type Server struct {
	listener  *Listener
	responder *Responder
	lg        log.Logger
	stats     *Stats

	count     uint64 // replies before shutdown, 0 serves forever
	remaining atomic.Uint64
}

func NewServer(l *Listener, count uint64, lg log.Logger) *Server {
	s := &Server{
		listener:  l,
		responder: NewResponder(l),
		lg:        lg,
		stats:     &Stats{},
		count:     count,
	}
	s.remaining.Store(count)
	return s
}

// Stats exposes the live counters for the control plane.
func (s *Server) Stats() *Stats { return s.stats }

// Remaining reports the replies left before shutdown. finite is false
// when the server is unbounded.
func (s *Server) Remaining() (n uint64, finite bool) {
	if s.count == 0 {
		return 0, false
	}
	return s.remaining.Load(), true
}

// Run serves until the reply budget is exhausted, the listener is
// closed, or receiving fails. Only the receive failure is an error;
// budget exhaustion and a closed listener are regular shutdowns.
func (s *Server) Run() error {
	payload := make([]byte, MaxDatagramSize)
	oob := make([]byte, ControlBufferSize)
	for {
		d, err := s.listener.Receive(payload, oob)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.lg.Info("listener closed, stopping")
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		s.serveOne(d)
		// The budget counts reply attempts, failed sends included.
		if s.count > 0 && s.remaining.Add(^uint64(0)) == 0 {
			s.lg.Info("reply budget exhausted, stopping")
			return nil
		}
	}
}

// Stop closes the listener; a blocked Run returns nil shortly after.
func (s *Server) Stop() error { return s.listener.Close() }

func (s *Server) serveOne(d Datagram) {
	s.stats.Received.Add(1)
	metrics.DatagramsReceived.WithLabelValues(s.listener.family.String()).Inc()

	if d.PayloadTruncated {
		s.stats.Truncated.Add(1)
		metrics.Truncations.Inc()
		s.lg.Warnf("datagram from %s truncated to %d bytes", d.Peer, len(d.Payload))
	}
	if d.ControlTruncated {
		s.stats.Truncated.Add(1)
		metrics.Truncations.Inc()
		s.lg.Warnf("ancillary data from %s truncated to %d bytes", d.Peer, len(d.OOB))
	}

	info, anomalies := ParseDestInfo(d.OOB, s.lg)
	if anomalies > 0 {
		s.stats.Anomalies.Add(uint64(anomalies))
		metrics.AncillaryAnomalies.Add(float64(anomalies))
	}
	if info.Present() && info.Family != s.listener.family {
		s.stats.FamilyMismatch.Add(1)
		s.lg.Warnf("dropping %s metadata on %s socket", info.Family, s.listener.family)
		info = PktInfo{}
	}
	if !info.Present() {
		s.stats.AbsentInfo.Add(1)
		metrics.AbsentDestInfo.Inc()
	}

	s.logDatagram(d, info)

	if err := s.responder.Reply(d.Payload, d.Peer, info); err != nil {
		s.stats.ReplyErrors.Add(1)
		metrics.ReplyErrors.Inc()
		s.lg.WithError(err).Warn("reply failed")
		return
	}
	s.stats.Replied.Add(1)
	metrics.DatagramsReplied.WithLabelValues(s.listener.family.String()).Inc()
}

// logDatagram writes the per-datagram line. Info level shows peer and
// discovered destination, debug adds the header destination and the
// interface index.
func (s *Server) logDatagram(d Datagram, info PktInfo) {
	switch {
	case s.lg.IsDebugEnabled():
		s.lg.Debugf("%d bytes from %s, %s", len(d.Payload), d.Peer, info)
	case s.lg.IsInfoEnabled():
		if info.Present() {
			s.lg.Infof("%d bytes from %s to %s", len(d.Payload), d.Peer, info.Dst)
		} else {
			s.lg.Infof("%d bytes from %s", len(d.Payload), d.Peer)
		}
	}
}
