// Package cryptosession implements the nonce-exchange key derivation and
// per-packet stream cipher described for the transport's session layer.
// It is a teaching-grade construction: the 8-byte tag defends against
// accidental corruption and casual tampering, not a motivated forger, and
// the cipher is not IND-CCA2. Byte semantics are exact for interop with
// the reference implementation; do not reuse this construction outside
// this transport.
package cryptosession

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// NonceSize is the width of each peer's handshake nonce.
	NonceSize = 16
	// KeySize is the width of the derived session key.
	KeySize = 32
	// TagSize is the width of the truncated integrity tag appended to ciphertext.
	TagSize = 8

	blockSize = sha256.Size
)

// ErrNotEstablished is returned by Encrypt/Decrypt before a session key exists.
var ErrNotEstablished = errors.New("cryptosession: session key not established")

// ErrTagMismatch is returned by Decrypt when the integrity tag does not match.
var ErrTagMismatch = errors.New("cryptosession: integrity tag mismatch")

// ErrShortCiphertext is returned by Decrypt when the payload is too small to
// contain a tag.
var ErrShortCiphertext = errors.New("cryptosession: payload shorter than tag")

// Session holds one peer's view of a nonce-derived key. Key is nil until
// an Establish method derives it; calling an Establish method again
// replaces it, which the receiver does on a repeated NONCE_REQ.
type Session struct {
	MyNonce   [NonceSize]byte
	PeerNonce [NonceSize]byte
	Key       []byte // nil until established
}

// GenerateNonce fills MyNonce with fresh entropy and returns it.
func (s *Session) GenerateNonce() ([NonceSize]byte, error) {
	if _, err := rand.Read(s.MyNonce[:]); err != nil {
		return [NonceSize]byte{}, errors.Wrap(err, "cryptosession: generating nonce")
	}
	return s.MyNonce, nil
}

// EstablishAsClient derives the session key given the server's nonce,
// treating MyNonce as the client nonce (client-then-server order).
func (s *Session) EstablishAsClient(serverNonce [NonceSize]byte) {
	s.PeerNonce = serverNonce
	s.Key = deriveKey(s.MyNonce, serverNonce)
}

// EstablishAsServer derives the session key given the client's nonce,
// treating MyNonce as the server nonce (client-then-server order).
func (s *Session) EstablishAsServer(clientNonce [NonceSize]byte) {
	s.PeerNonce = clientNonce
	s.Key = deriveKey(clientNonce, s.MyNonce)
}

// Established reports whether the session key has been derived.
func (s *Session) Established() bool {
	return s.Key != nil
}

func deriveKey(clientNonce, serverNonce [NonceSize]byte) []byte {
	h := sha256.New()
	h.Write(clientNonce[:])
	h.Write(serverNonce[:])
	return h.Sum(nil)
}

// keystream produces ceil(length/32) SHA-256 blocks keyed on the session key,
// the sequence number, and a block counter, truncated to length bytes.
func (s *Session) keystream(length int, seq uint32) []byte {
	out := make([]byte, 0, ((length+blockSize-1)/blockSize)*blockSize)
	var counter [12]byte
	binary.BigEndian.PutUint64(counter[0:8], uint64(seq))

	for i := uint32(0); len(out) < length; i++ {
		binary.BigEndian.PutUint32(counter[8:12], i)
		h := sha256.New()
		h.Write(s.Key)
		h.Write(counter[:])
		out = h.Sum(out)
	}
	return out[:length]
}

func tag(ciphertext []byte, seq uint32) []byte {
	var seqBE [8]byte
	binary.BigEndian.PutUint64(seqBE[:], uint64(seq))
	h := sha256.New()
	h.Write(ciphertext)
	h.Write(seqBE[:])
	return h.Sum(nil)[:TagSize]
}

// Encrypt XORs plaintext with the per-(key,seq) keystream and appends an
// 8-byte integrity tag over ciphertext||seq. The result is deterministic:
// the same (key, seq, plaintext) always yields identical bytes, which is
// what lets a retransmission resend the originally stored wire bytes
// verbatim.
func (s *Session) Encrypt(plaintext []byte, seq uint32) ([]byte, error) {
	if !s.Established() {
		return nil, ErrNotEstablished
	}

	ks := s.keystream(len(plaintext), seq)
	ciphertext := make([]byte, len(plaintext))
	for i := range plaintext {
		ciphertext[i] = plaintext[i] ^ ks[i]
	}

	return append(ciphertext, tag(ciphertext, seq)...), nil
}

// Decrypt splits off the trailing tag, verifies it, and recovers plaintext.
// A mismatched tag is reported as ErrTagMismatch so the caller can drop the
// datagram silently, as the receiver's reliability engine does.
func (s *Session) Decrypt(payload []byte, seq uint32) ([]byte, error) {
	if !s.Established() {
		return nil, ErrNotEstablished
	}
	if len(payload) < TagSize {
		return nil, ErrShortCiphertext
	}

	ciphertext := payload[:len(payload)-TagSize]
	received := payload[len(payload)-TagSize:]
	expected := tag(ciphertext, seq)

	if subtle.ConstantTimeCompare(received, expected) != 1 {
		return nil, ErrTagMismatch
	}

	ks := s.keystream(len(ciphertext), seq)
	plaintext := make([]byte, len(ciphertext))
	for i := range ciphertext {
		plaintext[i] = ciphertext[i] ^ ks[i]
	}
	return plaintext, nil
}
