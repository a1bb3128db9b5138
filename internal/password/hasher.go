// Package password derives and verifies salted scrypt password hashes.
//
// A hash string is "<hex digest>.<hex salt>". The salt is used in its hex
// text form as the scrypt salt input, which keeps records written by the
// previous Node implementation verifiable.
package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/sync/semaphore"

	"ventureflow/internal/config"
	"ventureflow/internal/metrics"
)

// ErrMalformedHash means a stored hash could not be parsed. It is distinct
// from a wrong password so operators can spot corrupt records.
var ErrMalformedHash = errors.New("malformed password hash")

const (
	minSaltLen = 16
	minKeyLen  = 64
)

type Hasher struct {
	n, r, p int
	keyLen  int
	saltLen int
	workers *semaphore.Weighted
}

// NewHasher builds a hasher from scrypt settings. Salt and key lengths below
// 16 and 64 bytes are raised to those floors.
func NewHasher(cfg config.ScryptConfig) *Hasher {
	h := &Hasher{n: cfg.N, r: cfg.R, p: cfg.P, keyLen: cfg.KeyLen, saltLen: cfg.SaltLen}
	if h.n == 0 {
		h.n = 16384
	}
	if h.r == 0 {
		h.r = 8
	}
	if h.p == 0 {
		h.p = 1
	}
	if h.keyLen < minKeyLen {
		h.keyLen = minKeyLen
	}
	if h.saltLen < minSaltLen {
		h.saltLen = minSaltLen
	}

	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	h.workers = semaphore.NewWeighted(int64(workers))
	return h
}

// Hash returns digestHex + "." + saltHex for a fresh random salt.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	saltBytes := make([]byte, h.saltLen)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	salt := hex.EncodeToString(saltBytes)

	digest, err := h.derive(ctx, plaintext, salt, h.keyLen)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(digest) + "." + salt, nil
}

// Verify re-derives the digest for plaintext with the stored salt and
// compares in constant time. A digest of a different length than the
// configured key compares false rather than failing.
func (h *Hasher) Verify(ctx context.Context, plaintext, hashString string) (bool, error) {
	stored, salt, err := parse(hashString)
	if err != nil {
		return false, err
	}

	derived, err := h.derive(ctx, plaintext, salt, h.keyLen)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(stored, derived) == 1, nil
}

func parse(hashString string) (digest []byte, salt string, err error) {
	digestHex, salt, ok := strings.Cut(hashString, ".")
	if !ok || digestHex == "" || salt == "" || strings.Contains(salt, ".") {
		return nil, "", ErrMalformedHash
	}

	digest, err = hex.DecodeString(digestHex)
	if err != nil {
		return nil, "", fmt.Errorf("%w: digest is not hex", ErrMalformedHash)
	}
	if _, err := hex.DecodeString(salt); err != nil {
		return nil, "", fmt.Errorf("%w: salt is not hex", ErrMalformedHash)
	}
	return digest, salt, nil
}

// derive runs scrypt on the caller's goroutine while holding a worker slot,
// so at most MaxWorkers derivations compete for CPU at once.
func (h *Hasher) derive(ctx context.Context, plaintext, salt string, keyLen int) ([]byte, error) {
	if err := h.workers.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire hash worker: %w", err)
	}
	defer h.workers.Release(1)

	start := time.Now()
	key, err := scrypt.Key([]byte(plaintext), []byte(salt), h.n, h.r, h.p, keyLen)
	metrics.PasswordHashDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
