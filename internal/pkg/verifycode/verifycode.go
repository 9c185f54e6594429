// Package verifycode produces the short numeric codes sent over a chat
// channel and the digests under which they are stored.
package verifycode

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"time"
)

const (
	DefaultTTL = 10 * time.Minute

	minCode = 100000
	maxCode = 999999
	Digits  = 6
)

type Generator struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

type Option func(*Generator)

func WithTTL(ttl time.Duration) Option {
	return func(g *Generator) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.random = r
		}
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{ttl: DefaultTTL, now: time.Now, random: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a code drawn uniformly from [100000, 999999] and the
// instant after which it must no longer be accepted.
func (g *Generator) Generate() (string, time.Time, error) {
	n, err := rand.Int(g.random, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("read random: %w", err)
	}
	code := fmt.Sprintf("%0*d", Digits, n.Int64()+minCode)
	return code, g.now().Add(g.ttl), nil
}

func (g *Generator) TTL() time.Duration {
	return g.ttl
}

// Valid reports whether s has the shape of an issued code.
func Valid(s string) bool {
	if len(s) != Digits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s[0] != '0'
}

// Hasher derives the lookup key stored instead of a plain code. The key is a
// server secret, so a leaked table cannot be matched back to codes by trying
// all of them.
type Hasher struct {
	key []byte
}

func NewHasher(key []byte) (*Hasher, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("code hash key is required")
	}
	return &Hasher{key: append([]byte(nil), key...)}, nil
}

func (h *Hasher) Sum(code string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}
