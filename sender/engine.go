// Package sender implements the Go-Back-N sending side of the
// transport: handshake initiation, window management, segmentation,
// inflight tracking, and RTO-driven retransmission. It is a
// single-threaded cooperative loop — the only suspension point is the
// bounded UDP receive.
package sender

import (
	"context"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"reliable-udp-go/internal/config"
	"reliable-udp-go/internal/udpsocket"
	"reliable-udp-go/pkg/congestion"
	"reliable-udp-go/pkg/cryptosession"
	"reliable-udp-go/pkg/translog"
	"reliable-udp-go/pkg/wire"
)

// ErrHandshakeTimeout is returned when the peer never answers the
// NONCE_REQ within the configured handshake timeout.
var ErrHandshakeTimeout = errors.New("sender: handshake timed out waiting for NONCE_RESP")

// PayloadFunc supplies the plaintext for segment seq. The engine is
// agnostic to where the bytes come from — a fixed test pattern, a file,
// a pipe — this is the boundary the spec leaves external.
type PayloadFunc func(seq uint32) []byte

// Stats is a read-only snapshot of the engine's progress, the hook a
// boundary driver uses for progress reporting instead of reaching into
// engine internals.
type Stats struct {
	SendBase         uint32
	TotalSegments    uint32
	TotalTransmitted int
	Retransmissions  int
	FastRetransmits  int
	DuplicateAcks    int
	MaxCwnd          float64
	Cwnd             float64
	Ssthresh         float64
	Phase            congestion.Phase
}

// Done reports whether every segment has been cumulatively acknowledged.
func (s Stats) Done() bool {
	return s.SendBase >= s.TotalSegments
}

type inflightEntry struct {
	bytes []byte
	sent  time.Time
}

// Engine is one sender-side session.
type Engine struct {
	cfg    config.Config
	sock   *udpsocket.Socket
	remote net.Addr
	log    translog.Endpoint

	session cryptosession.Session
	cc      *congestion.Controller

	sendBase atomic.Uint32 // mirrors the loop-local sendBase for Progress()
}

// Progress returns the current cumulative send base, safe to poll from
// another goroutine (e.g. a progress bar) while Run is executing.
func (e *Engine) Progress() uint32 {
	return e.sendBase.Load()
}

// New builds a sender Engine that will talk to remote over sock.
func New(cfg config.Config, sock *udpsocket.Socket, remote net.Addr) *Engine {
	return &Engine{
		cfg:    cfg,
		sock:   sock,
		remote: remote,
		log:    translog.For("sender"),
		cc: congestion.NewController(congestion.Config{
			InitCwnd:        cfg.InitCwnd,
			InitSsthresh:    cfg.InitSsthresh,
			DupAckThreshold: cfg.DupAckThreshold,
		}),
	}
}

// Handshake generates a client nonce, sends NONCE_REQ, and waits up to
// cfg.HandshakeTimeout for a NONCE_RESP. On success the session key is
// derived and Run may be called.
func (e *Engine) Handshake(ctx context.Context) error {
	clientNonce, err := e.session.GenerateNonce()
	if err != nil {
		return errors.Wrap(err, "sender: generating client nonce")
	}

	req := wire.Build(nil, wire.TypeNonceReq, 0, 0, 0, clientNonce[:])
	if err := e.sock.WriteTo(req, e.remote); err != nil {
		return errors.Wrap(err, "sender: sending NONCE_REQ")
	}

	buf := make([]byte, e.cfg.MaxDatagramSize)
	deadline := time.Now().Add(e.cfg.HandshakeTimeout)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			e.log.Warnf("handshake timed out after %s", e.cfg.HandshakeTimeout)
			return ErrHandshakeTimeout
		}

		n, _, err := e.sock.ReadFrom(buf, minDuration(remaining, e.cfg.RecvPoll))
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return errors.Wrap(err, "sender: reading during handshake")
		}

		h, payload, err := wire.Parse(buf[:n])
		if err != nil || h.Type != wire.TypeNonceResp || len(payload) < cryptosession.NonceSize {
			continue
		}

		var serverNonce [cryptosession.NonceSize]byte
		copy(serverNonce[:], payload[:cryptosession.NonceSize])
		e.session.EstablishAsClient(serverNonce)
		e.log.Infof("crypto handshake complete with %s", e.remote)
		return nil
	}
}

// Run drives the Go-Back-N main loop until every segment in
// [0, total) has been cumulatively acknowledged, or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, total uint32, payload PayloadFunc) (Stats, error) {
	var (
		sendBase uint32
		nextSeq  uint32
		peerRwnd = math.MaxInt32 // unbounded until the first ACK, per spec
		inflight = make(map[uint32]inflightEntry)
		stats    = Stats{TotalSegments: total}
		buf      = make([]byte, e.cfg.MaxDatagramSize)
	)

	for sendBase < total {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		// 1. Window fill.
		window := e.cc.Window()
		if peerRwnd < window {
			window = peerRwnd
		}
		for nextSeq < total && int(nextSeq-sendBase) < window {
			plaintext := payload(nextSeq)
			ciphertext, err := e.session.Encrypt(plaintext, nextSeq)
			if err != nil {
				return stats, errors.Wrapf(err, "sender: encrypting seq=%d", nextSeq)
			}
			pkt := wire.Build(nil, wire.TypeData, nextSeq, 0, 0, ciphertext)
			if err := e.sock.WriteTo(pkt, e.remote); err != nil {
				return stats, errors.Wrap(err, "sender: socket write failed")
			}
			inflight[nextSeq] = inflightEntry{bytes: pkt, sent: time.Now()}
			stats.TotalTransmitted++
			e.log.WithSeq(nextSeq).Debugf("sent")
			nextSeq++
		}

		// 2. Receive.
		n, _, err := e.sock.ReadFrom(buf, e.cfg.RecvPoll)
		switch {
		case err == nil:
			h, _, perr := wire.Parse(buf[:n])
			if perr != nil || h.Type != wire.TypeAck {
				break
			}
			switch {
			case h.Ack > sendBase:
				for s := range inflight {
					if s < h.Ack {
						delete(inflight, s)
					}
				}
				sendBase = h.Ack
				e.sendBase.Store(sendBase)
				e.cc.AckReceived(h.Ack)
				if e.cc.Cwnd > stats.MaxCwnd {
					stats.MaxCwnd = e.cc.Cwnd
				}
				peerRwnd = int(h.Rwnd)
			case h.Ack == sendBase:
				stats.DuplicateAcks++
				wasFastRecovery := e.cc.Phase == congestion.FastRecovery
				e.cc.DuplicateAck()
				peerRwnd = int(h.Rwnd)
				if !wasFastRecovery && e.cc.Phase == congestion.FastRecovery {
					if entry, ok := inflight[sendBase]; ok {
						e.log.WithSeq(sendBase).Warnf("fast retransmit on 3rd duplicate ack")
						if werr := e.sock.WriteTo(entry.bytes, e.remote); werr == nil {
							entry.sent = time.Now()
							inflight[sendBase] = entry
							stats.FastRetransmits++
							stats.TotalTransmitted++
						}
					}
				}
			default:
				// ack < send_base: stale, ignore.
			}
		case isTimeout(err):
			// fall through to the retransmit check
		default:
			return stats, errors.Wrap(err, "sender: socket read failed")
		}

		// 3. Retransmit on RTO.
		if entry, ok := inflight[sendBase]; ok && time.Since(entry.sent) > e.cfg.RTO {
			e.log.WithSeq(sendBase).Warnf("RTO expired, retransmitting")
			if werr := e.sock.WriteTo(entry.bytes, e.remote); werr == nil {
				entry.sent = time.Now()
				inflight[sendBase] = entry
				e.cc.TimeoutOccurred()
				stats.Retransmissions++
				stats.TotalTransmitted++
			}
		}
	}

	stats.SendBase = sendBase
	stats.Cwnd = e.cc.Cwnd
	stats.Ssthresh = e.cc.Ssthresh
	stats.Phase = e.cc.Phase
	return stats, nil
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
