package reorder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInOrderDeliversImmediately(t *testing.T) {
	b := NewBuffer(5)
	seg := b.Accept(0, []byte("a"))
	require.Len(t, seg, 1)
	require.Equal(t, uint32(0), seg[0].Seq)
	require.Equal(t, uint32(1), b.Expected())
}

func TestOutOfOrderBuffersAndCascades(t *testing.T) {
	b := NewBuffer(5)

	require.Empty(t, b.Accept(2, []byte("c")))
	require.Empty(t, b.Accept(1, []byte("b")))
	require.Equal(t, 2, b.Len())

	delivered := b.Accept(0, []byte("a"))
	require.Len(t, delivered, 3)
	for i, seg := range delivered {
		require.Equal(t, uint32(i), seg.Seq)
	}
	require.Equal(t, uint32(3), b.Expected())
	require.Equal(t, 0, b.Len())
}

func TestOldDuplicateIsIgnored(t *testing.T) {
	b := NewBuffer(5)
	b.Accept(0, []byte("a"))
	delivered := b.Accept(0, []byte("a-again"))
	require.Empty(t, delivered)
	require.Equal(t, uint32(1), b.Expected())
}

func TestBufferedDuplicateIsIgnored(t *testing.T) {
	b := NewBuffer(5)
	b.Accept(3, []byte("first"))
	b.Accept(3, []byte("second"))
	require.Equal(t, 1, b.Len())
}

func TestAdvertisedWindowShrinksAndFloorsAtZero(t *testing.T) {
	b := NewBuffer(2)
	require.Equal(t, uint16(2), b.AdvertisedWindow())

	b.Accept(1, []byte("x"))
	require.Equal(t, uint16(1), b.AdvertisedWindow())

	b.Accept(2, []byte("y"))
	require.Equal(t, uint16(0), b.AdvertisedWindow())

	// A segment beyond capacity still gets buffered (advisory, not enforced).
	b.Accept(3, []byte("z"))
	require.Equal(t, uint16(0), b.AdvertisedWindow())
}
