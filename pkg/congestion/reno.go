// Package congestion implements a classic Reno-style congestion state
// machine: slow start, congestion avoidance, and fast recovery. It is
// purely reactive — it holds no socket, no timers, and drives no I/O. The
// sender engine is responsible for translating ACK/timeout observations
// into calls on this type.
package congestion

import "math"

// Phase identifies which Reno state the controller is in.
type Phase int

const (
	SlowStart Phase = iota
	CongestionAvoidance
	FastRecovery
)

func (p Phase) String() string {
	switch p {
	case SlowStart:
		return "slow-start"
	case CongestionAvoidance:
		return "congestion-avoidance"
	case FastRecovery:
		return "fast-recovery"
	default:
		return "unknown"
	}
}

// Config carries the controller's initial values.
type Config struct {
	InitCwnd        float64
	InitSsthresh    float64
	DupAckThreshold int
}

// DefaultConfig matches the spec's INIT_CWND/INIT_SSTHRESH/DUP_ACK_THRESHOLD.
var DefaultConfig = Config{
	InitCwnd:        1.0,
	InitSsthresh:    64.0,
	DupAckThreshold: 3,
}

// Controller is a Reno-style congestion window state machine.
type Controller struct {
	cfg Config

	Cwnd           float64
	Ssthresh       float64
	DuplicateAcks  int
	Phase          Phase
	LastAck        int64 // -1 sentinel, matching the data model
}

// NewController builds a Controller with the given initial configuration.
func NewController(cfg Config) *Controller {
	return &Controller{
		cfg:      cfg,
		Cwnd:     cfg.InitCwnd,
		Ssthresh: cfg.InitSsthresh,
		Phase:    SlowStart,
		LastAck:  -1,
	}
}

// AckReceived notifies the controller of a fresh cumulative ACK, i.e. one
// whose value exceeds every ACK seen so far. The caller (the sender
// engine) is responsible for distinguishing fresh ACKs from duplicates
// before calling this; a repeat of the last ACK must go to DuplicateAck
// instead.
func (c *Controller) AckReceived(ack uint32) {
	c.LastAck = int64(ack)
	c.DuplicateAcks = 0

	switch c.Phase {
	case FastRecovery:
		c.Cwnd = c.Ssthresh
		c.Phase = CongestionAvoidance
	case SlowStart:
		c.Cwnd += 1.0
		if c.Cwnd >= c.Ssthresh {
			c.Phase = CongestionAvoidance
		}
	case CongestionAvoidance:
		c.Cwnd += 1.0 / c.Cwnd
	}
}

// DuplicateAck notifies the controller of a repeat of the last cumulative
// ACK value. The third such repeat triggers fast retransmit / fast
// recovery; duplicates observed while already in fast recovery inflate
// the window.
func (c *Controller) DuplicateAck() {
	c.DuplicateAcks++

	if c.Phase != FastRecovery {
		if c.DuplicateAcks == c.cfg.DupAckThreshold {
			c.Ssthresh = math.Max(c.Cwnd/2.0, 2.0)
			c.Cwnd = c.Ssthresh + float64(c.cfg.DupAckThreshold)
			c.Phase = FastRecovery
		}
		return
	}
	c.Cwnd += 1.0
}

// TimeoutOccurred notifies the controller that a retransmission timeout
// fired. It always resets to slow start with a fresh duplicate-ack count
// and ACK sentinel, regardless of the phase it was in.
func (c *Controller) TimeoutOccurred() {
	c.Ssthresh = math.Max(c.Cwnd/2.0, 2.0)
	c.Cwnd = 1.0
	c.Phase = SlowStart
	c.DuplicateAcks = 0
	c.LastAck = -1
}

// Window returns the current congestion window as a whole number of
// segments, via floor, as the sender must when sizing its send window.
func (c *Controller) Window() int {
	return int(math.Floor(c.Cwnd))
}
