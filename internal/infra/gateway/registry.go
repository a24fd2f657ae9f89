package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"ai-agent-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.GatewayRegistry = (*Registry)(nil)

// Registry is a fixed map of gateway name to adapter, built once at startup.
type Registry struct {
	adapters map[string]adapter.GatewayAdapter
}

func NewRegistry(adapters ...adapter.GatewayAdapter) *Registry {
	m := make(map[string]adapter.GatewayAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) Get(name string) (adapter.GatewayAdapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		out = append(out, n)
	}
	return out
}

func hmacHex(newHash func() hash.Hash, secret string, data []byte) string {
	h := hmac.New(newHash, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func hmacSHA256Hex(secret string, data []byte) string { return hmacHex(sha256.New, secret, data) }

func hmacSHA512Hex(secret string, data []byte) string { return hmacHex(sha512.New, secret, data) }

// signaturesEqual compares hex signatures without leaking the match position.
func signaturesEqual(expected, got string) bool {
	e, err1 := hex.DecodeString(strings.TrimSpace(expected))
	g, err2 := hex.DecodeString(strings.TrimSpace(got))
	if err1 != nil || err2 != nil {
		return false
	}
	return hmac.Equal(e, g)
}

// parseDecimalMinor converts a decimal money string ("10.00") into minor
// units. Only two fractional digits are honored; more is a parse error.
func parseDecimalMinor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has sub-cent precision", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	var n int64
	for _, c := range whole + frac {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("amount %q is not a decimal number", s)
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

func parseInt64(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
