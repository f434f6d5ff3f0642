package speech

import (
	"context"
	"errors"
	"sync"
)

// Synthesizer turns assistant text into spoken audio in the room.
// Implementations block until the utterance has been handed to the
// speech backend, not until playback finishes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) error
}

// MockSynthesizer records utterances and can be scripted to fail.
type MockSynthesizer struct {
	mu         sync.Mutex
	utterances []string
	failures   int
	failAlways bool
}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

// FailNext makes the next n Synthesize calls return an error.
func (m *MockSynthesizer) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

// FailAlways makes every Synthesize call return an error.
func (m *MockSynthesizer) FailAlways() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAlways = true
}

func (m *MockSynthesizer) Synthesize(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAlways {
		return errors.New("mock synthesizer: scripted failure")
	}
	if m.failures > 0 {
		m.failures--
		return errors.New("mock synthesizer: scripted failure")
	}
	m.utterances = append(m.utterances, text)
	return nil
}

// Utterances returns a copy of everything spoken so far.
func (m *MockSynthesizer) Utterances() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.utterances))
	copy(out, m.utterances)
	return out
}
