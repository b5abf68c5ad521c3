package types

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

const KeyLen = 32

var ErrInvalidKey = errors.New("invalid key")

type NoCompare [0]func()

// PublicKey is a curve25519 public key, text-encoded as standard base64.
type PublicKey struct {
	k [KeyLen]byte
}

// PrivateKey is a clamped curve25519 private key, text-encoded as standard base64.
type PrivateKey struct {
	_ NoCompare
	k [KeyLen]byte
}

func NewPrivateKey() PrivateKey {
	k := [KeyLen]byte{}
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		panic("error generating random bytes for private key: " + err.Error())
	}

	// clamp
	k[0] &= 248
	k[31] = (k[31] & 127) | 64
	return PrivateKey{k: k}
}

// ParsePrivateKey decodes a base64 private key as found in the server configuration file.
func ParsePrivateKey(s string) (PrivateKey, error) {
	var k PrivateKey
	if err := k.UnmarshalText([]byte(s)); err != nil {
		return PrivateKey{}, err
	}
	return k, nil
}

func (k PrivateKey) Public() PublicKey {
	pub := PublicKey{}
	curve25519.ScalarBaseMult(&pub.k, &k.k)
	return pub
}

func (k PrivateKey) IsZero() bool {
	return k.k == [KeyLen]byte{}
}

func (k PrivateKey) String() string {
	return base64.StdEncoding.EncodeToString(k.k[:])
}

func (k PrivateKey) MarshalText() ([]byte, error) {
	return marshalKey(k.k), nil
}

func (k *PrivateKey) UnmarshalText(text []byte) error {
	return unmarshalKey(&k.k, text)
}

func (k PublicKey) IsZero() bool {
	return k.k == [KeyLen]byte{}
}

func (k PublicKey) String() string {
	return base64.StdEncoding.EncodeToString(k.k[:])
}

func (k PublicKey) MarshalText() ([]byte, error) {
	return marshalKey(k.k), nil
}

func (k *PublicKey) UnmarshalText(text []byte) error {
	return unmarshalKey(&k.k, text)
}

func marshalKey(k [KeyLen]byte) []byte {
	b := make([]byte, base64.StdEncoding.EncodedLen(len(k)))
	base64.StdEncoding.Encode(b, k[:])
	return b
}

func unmarshalKey(dst *[KeyLen]byte, text []byte) error {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(raw, text)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if n != KeyLen {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, n, KeyLen)
	}
	copy(dst[:], raw[:n])
	return nil
}
