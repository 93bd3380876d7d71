// Package config defines the transport's tunable constants as fields of
// a value, loadable from an optional TOML file, rather than as
// package-level constants — so multiple sessions and per-test overrides
// are possible in the same process.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config holds every constant the spec calls out in its configuration
// table, plus the endpoint addresses needed to run two real UDP
// sockets instead of an in-process stub.
// Durations are plain time.Duration fields; in a TOML file they are
// written as the integer number of nanoseconds, matching how
// BurntSushi/toml decodes an int64-backed type with no custom
// UnmarshalText.
type Config struct {
	PayloadSize      int           `toml:"payload_size"`
	RTO              time.Duration `toml:"rto"`
	RecvPoll         time.Duration `toml:"recv_poll"`
	HandshakeTimeout time.Duration `toml:"handshake_timeout"`
	RecvBufferPkts   int           `toml:"recv_buffer_pkts"`
	InitCwnd         float64       `toml:"init_cwnd"`
	InitSsthresh     float64       `toml:"init_ssthresh"`
	DupAckThreshold  int           `toml:"dup_ack_threshold"`
	ListenAddr       string        `toml:"listen_addr"`
	RemoteAddr       string        `toml:"remote_addr"`
	MaxDatagramSize  int           `toml:"max_datagram_size"`
}

// Default returns the constants from the spec's configuration table.
func Default() Config {
	return Config{
		PayloadSize:      1000,
		RTO:              200 * time.Millisecond,
		RecvPoll:         50 * time.Millisecond,
		HandshakeTimeout: 2000 * time.Millisecond,
		RecvBufferPkts:   5,
		InitCwnd:         1.0,
		InitSsthresh:     64.0,
		DupAckThreshold:  3,
		ListenAddr:       "0.0.0.0:9000",
		RemoteAddr:       "127.0.0.1:9000",
		MaxDatagramSize:  2048,
	}
}

// Load reads a TOML file and overlays it on top of Default, so a partial
// file only needs to specify the fields it wants to override.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config: loading %s", path)
	}
	return cfg, nil
}
