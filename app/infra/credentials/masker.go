package credentials

import (
	"strings"
	"sync"
)

const mask = "***"

// Masker scrubs known secrets out of text before it reaches logs or error
// details. Safe for concurrent use: the executor masks from many
// goroutines.
type Masker struct {
	mu      sync.RWMutex
	secrets []string
}

func NewMasker(secrets ...string) *Masker {
	m := &Masker{}
	for _, s := range secrets {
		m.Add(s)
	}
	return m
}

// Add registers a secret to scrub. Empty values are ignored so a missing
// optional credential cannot turn Mask into a no-op-everywhere.
func (m *Masker) Add(secret string) {
	if secret == "" {
		return
	}
	m.mu.Lock()
	m.secrets = append(m.secrets, secret)
	m.mu.Unlock()
}

// Mask replaces every known secret in text.
func (m *Masker) Mask(text string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.secrets {
		text = strings.ReplaceAll(text, s, mask)
	}
	return text
}
