package telegram

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gotd/td/session"
)

// EncodeCredential turns raw session storage bytes into the opaque string
// operators keep in TG_SESSION.
func EncodeCredential(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCredential parses a session credential into session storage bytes.
// Credentials printed by the login command and Telethon StringSession
// strings are both accepted.
func DecodeCredential(ctx context.Context, credential string) ([]byte, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrSessionRequired
	}

	if raw, err := base64.RawURLEncoding.DecodeString(credential); err == nil && json.Valid(raw) {
		return raw, nil
	}

	if strings.HasPrefix(credential, "1") {
		data, err := session.TelethonSession(credential)
		if err != nil {
			return nil, fmt.Errorf("decode telethon session: %w", err)
		}
		converted := NewMemorySession()
		loader := session.Loader{Storage: converted}
		if err := loader.Save(ctx, data); err != nil {
			return nil, fmt.Errorf("convert telethon session: %w", err)
		}
		return converted.bytes(), nil
	}

	return nil, errors.New("unrecognized session credential format")
}

// MemorySession is an in-process session storage. gotd writes to it whenever
// the session changes, so Credential always reflects the latest state.
type MemorySession struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemorySession creates an empty session storage.
func NewMemorySession() *MemorySession {
	return &MemorySession{}
}

// NewMemorySessionFromCredential creates a storage seeded from a credential.
func NewMemorySessionFromCredential(ctx context.Context, credential string) (*MemorySession, error) {
	data, err := DecodeCredential(ctx, credential)
	if err != nil {
		return nil, err
	}
	s := NewMemorySession()
	if err := s.StoreSession(ctx, data); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadSession implements session.Storage.
func (s *MemorySession) LoadSession(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, nil
}

// StoreSession implements session.Storage.
func (s *MemorySession) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data[:0:0], data...)
	return nil
}

// Credential returns the current session as a credential string.
func (s *MemorySession) Credential() (string, error) {
	data := s.bytes()
	if len(data) == 0 {
		return "", session.ErrNotFound
	}
	return EncodeCredential(data), nil
}

func (s *MemorySession) bytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// SeedStorage writes credential into storage unless it already holds a
// session. It reports whether anything was written. An empty credential is
// not an error.
func SeedStorage(ctx context.Context, storage session.Storage, credential string) (bool, error) {
	if strings.TrimSpace(credential) == "" {
		return false, nil
	}
	_, err := storage.LoadSession(ctx)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, session.ErrNotFound):
		return false, fmt.Errorf("load session: %w", err)
	}

	data, err := DecodeCredential(ctx, credential)
	if err != nil {
		return false, err
	}
	if err := storage.StoreSession(ctx, data); err != nil {
		return false, fmt.Errorf("store session: %w", err)
	}
	return true, nil
}
