// Package receiver implements the datagram intake, decrypt+verify,
// reorder/cascade delivery, and cumulative-ACK+rwnd emission side of the
// transport. Like the sender, it is a single-threaded cooperative loop
// whose only suspension point is the bounded UDP receive.
package receiver

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"reliable-udp-go/internal/config"
	"reliable-udp-go/internal/reorder"
	"reliable-udp-go/internal/udpsocket"
	"reliable-udp-go/pkg/cryptosession"
	"reliable-udp-go/pkg/translog"
	"reliable-udp-go/pkg/wire"
)

// PayloadConsumer is invoked once per delivered seq, strictly in order.
type PayloadConsumer func(seq uint32, payload []byte)

// Engine is one receiver-side session. It pins the client address on
// the first NONCE_REQ it sees and ignores datagrams from any other
// source for the lifetime of the session — resolving the address
// pinning open question toward the safer behavior rather than the
// reference implementation's permissive re-pin on every datagram (see
// DESIGN.md).
type Engine struct {
	cfg  config.Config
	sock *udpsocket.Socket
	log  translog.Endpoint

	buf *reorder.Buffer

	session     cryptosession.Session
	established bool
	peerAddr    net.Addr
}

// New builds a receiver Engine bound to sock.
func New(cfg config.Config, sock *udpsocket.Socket) *Engine {
	return &Engine{
		cfg:  cfg,
		sock: sock,
		log:  translog.For("receiver"),
		buf:  reorder.NewBuffer(cfg.RecvBufferPkts),
	}
}

// Run processes datagrams until ctx is cancelled or the socket fails
// fatally. It never returns on its own — per the spec, the receiver has
// no end-of-session signal.
func (e *Engine) Run(ctx context.Context, consume PayloadConsumer) error {
	buf := make([]byte, e.cfg.MaxDatagramSize)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, addr, err := e.sock.ReadFrom(buf, e.cfg.RecvPoll)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return errors.Wrap(err, "receiver: socket read failed")
		}

		h, payload, err := wire.Parse(buf[:n])
		if err != nil {
			continue // malformed datagram: silently drop
		}

		var handleErr error
		switch h.Type {
		case wire.TypeNonceReq:
			handleErr = e.handleNonceReq(payload, addr)
		case wire.TypeData:
			handleErr = e.handleData(h, payload, addr, consume)
		default:
			// ACKs and anything else arriving at the receiver are stray; ignore.
		}
		if handleErr != nil {
			return handleErr
		}
	}
}

func (e *Engine) handleNonceReq(payload []byte, addr net.Addr) error {
	if len(payload) < cryptosession.NonceSize {
		return nil
	}
	if e.peerAddr != nil && addr.String() != e.peerAddr.String() {
		e.log.Warnf("ignoring NONCE_REQ from %s, session already pinned to %s", addr, e.peerAddr)
		return nil
	}

	var clientNonce [cryptosession.NonceSize]byte
	copy(clientNonce[:], payload[:cryptosession.NonceSize])

	serverNonce, err := e.session.GenerateNonce()
	if err != nil {
		return errors.Wrap(err, "receiver: generating server nonce")
	}
	e.session.EstablishAsServer(clientNonce)
	e.established = true
	e.peerAddr = addr

	resp := wire.Build(nil, wire.TypeNonceResp, 0, 0, 0, serverNonce[:])
	if err := e.sock.WriteTo(resp, addr); err != nil {
		return errors.Wrap(err, "receiver: sending NONCE_RESP")
	}
	e.log.Infof("crypto handshake complete with %s", addr)
	return nil
}

func (e *Engine) handleData(h wire.Header, payload []byte, addr net.Addr, consume PayloadConsumer) error {
	if !e.established || addr.String() != e.peerAddr.String() {
		return nil
	}

	plaintext, err := e.session.Decrypt(payload, h.Seq)
	if err != nil {
		e.log.WithSeq(h.Seq).Debugf("dropping datagram: %v", err)
		return nil
	}

	before := e.buf.AdvertisedWindow()
	delivered := e.buf.Accept(h.Seq, plaintext)
	for _, seg := range delivered {
		consume(seg.Seq, seg.Payload)
	}
	after := e.buf.AdvertisedWindow()
	if before != after {
		e.log.Infof("rwnd %d -> %d (expected_seq=%d, buffered=%d)", before, after, e.buf.Expected(), e.buf.Len())
	}

	ack := wire.Build(nil, wire.TypeAck, 0, e.buf.Expected(), after, nil)
	if err := e.sock.WriteTo(ack, e.peerAddr); err != nil {
		return errors.Wrap(err, "receiver: sending ACK")
	}
	return nil
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
