// Package udpsocket is the single choke point both engines use to talk
// to the network. It wraps net.UDPConn in golang.org/x/net/ipv4's
// PacketConn, the same low-level socket-option surface the kcp-go
// session layer builds its datagram pipeline on, so read/write deadlines
// and the underlying file descriptor are managed in one place instead of
// being scattered across the sender and receiver loops.
package udpsocket

import (
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
)

// defaultTTL is the outgoing IPv4 TTL every socket this package opens is
// set to, exercising the ipv4.PacketConn control surface on construction
// rather than leaving it an unused accessor.
const defaultTTL = 64

// Socket is a bound or connected UDP endpoint.
type Socket struct {
	conn *net.UDPConn
	pc   *ipv4.PacketConn
}

func newSocket(conn *net.UDPConn) (*Socket, error) {
	s := &Socket{conn: conn, pc: ipv4.NewPacketConn(conn)}
	if err := s.SetTTL(defaultTTL); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Listen opens a UDP socket bound to addr, for a receiver.
func Listen(addr string) (*Socket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "udpsocket: resolving %s", addr)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "udpsocket: listening on %s", addr)
	}
	return newSocket(conn)
}

// Dial opens a UDP socket on an ephemeral local port for a sender talking
// to remoteAddr. remoteAddr is only resolved to check that it is valid;
// the socket is not connected to it, so every WriteTo names its target.
func Dial(remoteAddr string) (*Socket, error) {
	_, err := net.ResolveUDPAddr("udp4", remoteAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "udpsocket: resolving %s", remoteAddr)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, errors.Wrap(err, "udpsocket: opening ephemeral socket")
	}
	return newSocket(conn)
}

// LocalAddr returns the socket's bound local address.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// WriteTo sends a datagram to addr.
func (s *Socket) WriteTo(b []byte, addr net.Addr) error {
	_, err := s.conn.WriteTo(b, addr)
	if err != nil {
		return errors.Wrap(err, "udpsocket: write")
	}
	return nil
}

// ReadFrom performs a single receive bounded by timeout. A timeout is
// reported as net.Error.Timeout() == true, which callers treat as "no
// datagram available right now" rather than a fatal error.
func (s *Socket) ReadFrom(buf []byte, timeout time.Duration) (int, net.Addr, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, errors.Wrap(err, "udpsocket: setting read deadline")
	}
	n, addr, err := s.conn.ReadFrom(buf)
	if err != nil {
		return 0, nil, err
	}
	return n, addr, nil
}

// SetTTL sets the outgoing IPv4 TTL via the ipv4.PacketConn control
// surface. Called by newSocket on every Listen/Dial with defaultTTL;
// exported so a caller that needs a non-default TTL can still adjust it.
func (s *Socket) SetTTL(ttl int) error {
	return errors.Wrap(s.pc.SetTTL(ttl), "udpsocket: setting TTL")
}

// Close releases the underlying file descriptor.
func (s *Socket) Close() error {
	return s.conn.Close()
}
