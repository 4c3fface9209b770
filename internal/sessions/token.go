package sessions

import (
	"fmt"
	"sync"

	"github.com/jaevor/go-nanoid"
)

const (
	// TokenLength is the number of hex characters in a session token (512 bits).
	TokenLength   = 128
	tokenAlphabet = "0123456789abcdef"
)

type tokenSource struct {
	mu  sync.Mutex
	gen func() string
}

// NewTokenGenerator returns a generator of crypto-random hex session tokens that is safe
// for concurrent use.
func NewTokenGenerator() (func() string, error) {
	gen, err := nanoid.CustomASCII(tokenAlphabet, TokenLength)
	if err != nil {
		return nil, fmt.Errorf("init token generator: %w", err)
	}
	src := &tokenSource{gen: gen}
	return src.next, nil
}

func (s *tokenSource) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen()
}
