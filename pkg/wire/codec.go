// Package wire implements the fixed-header datagram codec shared by the
// sender and receiver engines. It is pure and allocation-light: Build
// writes into a caller-supplied buffer when one is given, and Parse
// returns slices into the input rather than copying.
package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Packet types, in wire order.
const (
	TypeData      byte = 0
	TypeAck       byte = 1
	TypeNonceReq  byte = 2
	TypeNonceResp byte = 3
)

// HeaderSize is the fixed header width: type(1) seq(4) ack(4) rwnd(2) length(2).
const HeaderSize = 13

// ErrShortDatagram is returned when a datagram is smaller than HeaderSize.
var ErrShortDatagram = errors.New("wire: datagram shorter than header")

// ErrLengthOverflow is returned when the header's length field claims more
// payload than the datagram actually carries.
var ErrLengthOverflow = errors.New("wire: declared length exceeds datagram size")

// Header holds the decoded fixed fields of a datagram.
type Header struct {
	Type   byte
	Seq    uint32
	Ack    uint32
	Rwnd   uint16
	Length uint16
}

// Build packs (type, seq, ack, rwnd, payload) into a single datagram. If buf
// is long enough to hold HeaderSize+len(payload) it is reused in place,
// otherwise a new buffer is allocated.
func Build(buf []byte, typ byte, seq, ack uint32, rwnd uint16, payload []byte) []byte {
	total := HeaderSize + len(payload)
	if cap(buf) < total {
		buf = make([]byte, total)
	} else {
		buf = buf[:total]
	}

	buf[0] = typ
	binary.BigEndian.PutUint32(buf[1:5], seq)
	binary.BigEndian.PutUint32(buf[5:9], ack)
	binary.BigEndian.PutUint16(buf[9:11], rwnd)
	binary.BigEndian.PutUint16(buf[11:13], uint16(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// Parse decodes a received datagram into its header and payload slice. The
// payload slice aliases datagram; callers that retain it past the next
// receive must copy it.
func Parse(datagram []byte) (Header, []byte, error) {
	if len(datagram) < HeaderSize {
		return Header{}, nil, ErrShortDatagram
	}

	h := Header{
		Type:   datagram[0],
		Seq:    binary.BigEndian.Uint32(datagram[1:5]),
		Ack:    binary.BigEndian.Uint32(datagram[5:9]),
		Rwnd:   binary.BigEndian.Uint16(datagram[9:11]),
		Length: binary.BigEndian.Uint16(datagram[11:13]),
	}

	end := HeaderSize + int(h.Length)
	if end > len(datagram) {
		return Header{}, nil, ErrLengthOverflow
	}

	return h, datagram[HeaderSize:end], nil
}
