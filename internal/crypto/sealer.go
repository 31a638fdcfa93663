package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	sealedPrefix = "v1."
	sealerInfo   = "syncdo calendar credential v1"
)

// Sealer encrypts short secrets at rest with XChaCha20-Poly1305 under a key
// derived from the server secret. Ciphertexts are bound to their owner.
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key from secret via HKDF-SHA256.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty sealing secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(sealerInfo)), key); err != nil {
		return nil, err
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext for ownerID. Output is "v1." + base64url(nonce||ct).
func (s *Sealer) Seal(ownerID int64, plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce, err := RandBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return "", err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(plaintext), ownerAAD(ownerID))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values without the version prefix predate sealing and
// are returned unchanged.
func (s *Sealer) Open(ownerID int64, stored string) (string, error) {
	enc, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return stored, nil
	}
	blob, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", err
	}
	if len(blob) < chacha20poly1305.NonceSizeX {
		return "", errors.New("sealed value too short")
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce, ct := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	pt, err := aead.Open(nil, nonce, ct, ownerAAD(ownerID))
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func ownerAAD(ownerID int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(ownerID))
	return b[:]
}
