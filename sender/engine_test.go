package sender

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reliable-udp-go/internal/config"
	"reliable-udp-go/internal/udpsocket"
	"reliable-udp-go/pkg/wire"
)

func TestHandshakeTimesOutWhenPeerNeverResponds(t *testing.T) {
	cfg := config.Default()
	cfg.HandshakeTimeout = 150 * time.Millisecond
	cfg.RecvPoll = 10 * time.Millisecond
	cfg.MaxDatagramSize = 2048

	// silentSock stands in for a receiver that never answers NONCE_REQ.
	silentSock, err := udpsocket.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer silentSock.Close()

	sendSock, err := udpsocket.Dial(silentSock.LocalAddr().String())
	require.NoError(t, err)
	defer sendSock.Close()

	engine := New(cfg, sendSock, silentSock.LocalAddr())

	start := time.Now()
	err = engine.Handshake(context.Background())
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrHandshakeTimeout)
	require.GreaterOrEqual(t, elapsed, cfg.HandshakeTimeout)

	// the peer must have seen exactly the NONCE_REQ and nothing else —
	// in particular, no DATA segment, since Run was never called.
	buf := make([]byte, cfg.MaxDatagramSize)
	n, _, err := silentSock.ReadFrom(buf, time.Second)
	require.NoError(t, err, "the silent peer should still have received the NONCE_REQ")
	h, _, err := wire.Parse(buf[:n])
	require.NoError(t, err)
	require.Equal(t, wire.TypeNonceReq, h.Type)

	n, _, err = silentSock.ReadFrom(buf, 50*time.Millisecond)
	require.Error(t, err, "no further datagrams, and certainly no DATA, should have been sent")
	_ = n
}

func TestHandshakeTimeoutRespectsContextCancellation(t *testing.T) {
	cfg := config.Default()
	cfg.HandshakeTimeout = 5 * time.Second
	cfg.RecvPoll = 10 * time.Millisecond
	cfg.MaxDatagramSize = 2048

	silentSock, err := udpsocket.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer silentSock.Close()

	sendSock, err := udpsocket.Dial(silentSock.LocalAddr().String())
	require.NoError(t, err)
	defer sendSock.Close()

	engine := New(cfg, sendSock, silentSock.LocalAddr())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err = engine.Handshake(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
