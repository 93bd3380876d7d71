// Command transportdemo drives a sender and a receiver against each
// other over real loopback UDP sockets, the boundary-plumbing shape the
// engines themselves stay agnostic to: it owns the payload source, the
// delivery sink, and progress reporting, and leaves the reliability
// machinery untouched.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"reliable-udp-go/internal/config"
	"reliable-udp-go/internal/udpsocket"
	"reliable-udp-go/pkg/translog"
	"reliable-udp-go/receiver"
	"reliable-udp-go/sender"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to a TOML config file overlaying the defaults")
	total := flag.Uint("segments", 200, "number of segments to transfer")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		translog.SetLevel(logrus.DebugLevel)
	}

	translog.Section("reliable-udp-go transport demo v" + version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		translog.For("main").Errorf("loading config: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		translog.For("main").Warnf("interrupted, shutting down")
		cancel()
	}()
	defer cancel()

	if err := run(ctx, cfg, uint32(*total)); err != nil {
		translog.For("main").Errorf("demo failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, total uint32) error {
	recvSock, err := udpsocket.Listen("127.0.0.1:0")
	if err != nil {
		return err
	}
	defer recvSock.Close()

	sendSock, err := udpsocket.Dial(recvSock.LocalAddr().String())
	if err != nil {
		return err
	}
	defer sendSock.Close()

	var (
		mu       sync.Mutex
		received = make(map[uint32][]byte, total)
	)
	recvEngine := receiver.New(cfg, recvSock)

	var wg sync.WaitGroup
	recvCtx, stopRecv := context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = recvEngine.Run(recvCtx, func(seq uint32, payload []byte) {
			mu.Lock()
			received[seq] = append([]byte(nil), payload...)
			mu.Unlock()
		})
	}()

	sendEngine := sender.New(cfg, sendSock, recvSock.LocalAddr())
	if err := sendEngine.Handshake(ctx); err != nil {
		stopRecv()
		wg.Wait()
		return err
	}

	bar := progressbar.NewOptions(int(total),
		progressbar.OptionSetDescription("transferring"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
	)

	producer := func(seq uint32) []byte {
		return fixedPayload(cfg.PayloadSize, seq)
	}

	stopProgress := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = bar.Set(int(sendEngine.Progress()))
			case <-stopProgress:
				return
			}
		}
	}()

	stats, runErr := sendEngine.Run(ctx, total, producer)
	close(stopProgress)
	<-progressDone
	_ = bar.Set(int(stats.SendBase))
	_ = bar.Close()

	stopRecv()
	wg.Wait()

	if runErr != nil {
		return runErr
	}

	translog.Section("transfer complete")
	log := translog.For("main")
	log.Infof("segments acknowledged: %d/%d", stats.SendBase, stats.TotalSegments)
	log.Infof("total transmissions: %d (retransmits=%d fast_retransmits=%d dup_acks=%d)",
		stats.TotalTransmitted, stats.Retransmissions, stats.FastRetransmits, stats.DuplicateAcks)
	log.Infof("final cwnd=%.2f ssthresh=%.2f max_cwnd=%.2f phase=%s",
		stats.Cwnd, stats.Ssthresh, stats.MaxCwnd, stats.Phase)

	mu.Lock()
	defer mu.Unlock()
	for seq := uint32(0); seq < total; seq++ {
		if _, ok := received[seq]; !ok {
			log.Warnf("segment %d never reached the delivery consumer", seq)
		}
	}
	return nil
}

// fixedPayload reproduces the test pattern: byte (i mod 256) repeated
// size times, where i is the segment's sequence number.
func fixedPayload(size int, seq uint32) []byte {
	b := make([]byte, size)
	v := byte(seq % 256)
	for i := range b {
		b[i] = v
	}
	return b
}
