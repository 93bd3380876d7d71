package congestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestController() *Controller {
	return NewController(DefaultConfig)
}

func TestInitialState(t *testing.T) {
	c := newTestController()
	assert.Equal(t, 1.0, c.Cwnd)
	assert.Equal(t, 64.0, c.Ssthresh)
	assert.Equal(t, SlowStart, c.Phase)
	assert.Equal(t, int64(-1), c.LastAck)
}

func TestSlowStartGrowsByOnePerAck(t *testing.T) {
	c := newTestController()
	for i := uint32(1); i <= 5; i++ {
		c.AckReceived(i)
	}
	assert.Equal(t, 6.0, c.Cwnd)
	assert.Equal(t, SlowStart, c.Phase)
}

func TestSlowStartPromotesToCongestionAvoidance(t *testing.T) {
	c := newTestController()
	c.Cwnd = 63.0
	c.AckReceived(1)
	assert.Equal(t, 64.0, c.Cwnd)
	assert.Equal(t, CongestionAvoidance, c.Phase)
}

func TestCongestionAvoidanceGrowsSublinearly(t *testing.T) {
	c := newTestController()
	c.Phase = CongestionAvoidance
	c.Cwnd = 10.0
	c.AckReceived(1)
	assert.InDelta(t, 10.1, c.Cwnd, 1e-9)
}

func TestThirdDuplicateAckEntersFastRecovery(t *testing.T) {
	c := newTestController()
	c.Cwnd = 20.0
	c.DuplicateAck()
	c.DuplicateAck()
	assert.Equal(t, SlowStart, c.Phase, "first two duplicates should not yet trigger fast recovery")
	c.DuplicateAck()
	assert.Equal(t, FastRecovery, c.Phase)
	assert.Equal(t, 10.0, c.Ssthresh) // max(20/2, 2)
	assert.Equal(t, 13.0, c.Cwnd)     // ssthresh + 3
}

func TestDuplicateAckInFastRecoveryInflatesWindow(t *testing.T) {
	c := newTestController()
	c.Phase = FastRecovery
	c.Cwnd = 13.0
	c.DuplicateAck()
	assert.Equal(t, 14.0, c.Cwnd)
	assert.Equal(t, FastRecovery, c.Phase)
}

func TestFreshAckInFastRecoveryDeflatesToSsthresh(t *testing.T) {
	c := newTestController()
	c.Phase = FastRecovery
	c.Ssthresh = 10.0
	c.Cwnd = 14.0
	c.LastAck = 4
	c.AckReceived(5)
	assert.Equal(t, 10.0, c.Cwnd)
	assert.Equal(t, CongestionAvoidance, c.Phase)
}

func TestTimeoutResetsToSlowStart(t *testing.T) {
	c := newTestController()
	c.Cwnd = 40.0
	c.Phase = CongestionAvoidance
	c.DuplicateAcks = 2
	c.LastAck = 99
	c.TimeoutOccurred()

	assert.Equal(t, SlowStart, c.Phase)
	assert.Equal(t, 1.0, c.Cwnd)
	assert.Equal(t, 20.0, c.Ssthresh) // max(40/2, 2)
	assert.Equal(t, 0, c.DuplicateAcks)
	assert.Equal(t, int64(-1), c.LastAck)
}

func TestSsthreshNeverFallsBelowTwo(t *testing.T) {
	c := newTestController()
	c.Cwnd = 1.0
	c.TimeoutOccurred()
	assert.Equal(t, 2.0, c.Ssthresh)
}

func TestWindowFloorsCwnd(t *testing.T) {
	c := newTestController()
	c.Cwnd = 7.9
	assert.Equal(t, 7, c.Window())
}
