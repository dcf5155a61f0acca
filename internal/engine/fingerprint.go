package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/brightpath/pulse/internal/identity"
	"github.com/brightpath/pulse/internal/logger"
)

// Signals are the device/browser probes a fingerprint is derived from.
// The token is stable across reloads of the same browser but collisions are
// tolerated: the backend treats it as an upsert key, not a unique identity.
type Signals struct {
	Platform string
	Timezone string
	Language string
	ScreenW  int
	ScreenH  int
	Features []string
}

// SignalSource probes the host environment for fingerprint signals.
type SignalSource interface {
	Probe() (Signals, error)
}

// FingerprintResolver derives and persists the per-browser identity token.
// Resolve never fails: when signal probing is unavailable it falls back to a
// random token, because identity resolution must never block page load.
type FingerprintResolver struct {
	ids identity.Store
	src SignalSource
	log logger.Logger
}

// NewFingerprintResolver creates a resolver over the given store and source.
func NewFingerprintResolver(ids identity.Store, src SignalSource, log logger.Logger) *FingerprintResolver {
	return &FingerprintResolver{ids: ids, src: src, log: log}
}

// Resolve returns the persisted fingerprint, computing and persisting one on
// first call. Subsequent calls return the cached value without recomputation.
func (r *FingerprintResolver) Resolve() string {
	if fp, ok := r.ids.Get(identity.KeyFingerprint); ok && fp != "" {
		return fp
	}

	fp := r.derive()
	r.ids.Set(identity.KeyFingerprint, fp)
	return fp
}

// derive computes the signal-based token, or a random fallback when the
// signal source is unavailable. The fallback is an explicit secondary
// strategy, not an error path.
func (r *FingerprintResolver) derive() string {
	if r.src == nil {
		return randomFingerprint()
	}

	sig, err := r.src.Probe()
	if err != nil {
		r.log.Debug("Signal probe unavailable, using random fingerprint",
			logger.Error(err),
		)
		return randomFingerprint()
	}

	return hashSignals(sig)
}

// hashSignals canonicalizes the probe results and hashes them.
func hashSignals(sig Signals) string {
	parts := []string{
		sig.Platform,
		sig.Timezone,
		sig.Language,
		fmt.Sprintf("%dx%d", sig.ScreenW, sig.ScreenH),
	}
	parts = append(parts, sig.Features...)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func randomFingerprint() string {
	return "rnd-" + uuid.NewString()
}
