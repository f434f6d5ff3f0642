package speech

import (
	"context"
	"fmt"
	"sync/atomic"
)

// NewFailoverSynthesizer prefers the primary backend and automatically
// switches to fallback when primary fails. Once fallback succeeds, it
// stays active until fallback fails; then primary is retried.
func NewFailoverSynthesizer(primary, fallback Synthesizer) Synthesizer {
	return &failoverSynthesizer{primary: primary, fallback: fallback}
}

type failoverSynthesizer struct {
	primary        Synthesizer
	fallback       Synthesizer
	fallbackActive atomic.Bool
}

func (f *failoverSynthesizer) Synthesize(ctx context.Context, text string) error {
	if f.fallbackActive.Load() {
		fbErr := f.fallback.Synthesize(ctx, text)
		if fbErr == nil {
			return nil
		}
		// Fallback failed after being active; try primary again.
		prErr := f.primary.Synthesize(ctx, text)
		if prErr == nil {
			f.fallbackActive.Store(false)
			return nil
		}
		return fmt.Errorf("speech fallback failed: %v; speech primary failed: %w", fbErr, prErr)
	}

	prErr := f.primary.Synthesize(ctx, text)
	if prErr == nil {
		return nil
	}
	fbErr := f.fallback.Synthesize(ctx, text)
	if fbErr != nil {
		return fmt.Errorf("speech primary failed: %v; speech fallback failed: %w", prErr, fbErr)
	}
	f.fallbackActive.Store(true)
	return nil
}
