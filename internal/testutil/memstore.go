package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/voidvault/voidvault-server/internal/model"
)

// MemStore is an in-memory model.AuthStore with the same atomicity
// guarantees the postgres repository provides through transactions. Used
// by service and handler tests; the SQL-level locking behavior itself is
// covered by the integration tests.
type MemStore struct {
	mu       sync.Mutex
	creds    map[string]model.Credential
	nonces   map[string]model.Nonce
	slots    []model.PlaceholderSlot
	mappings map[string]string // verifier -> fingerprint
}

var _ model.AuthStore = (*MemStore)(nil)

// NewMemStore returns an empty store. Seed the pool before issuing
// register challenges.
func NewMemStore() *MemStore {
	return &MemStore{
		creds:    make(map[string]model.Credential),
		nonces:   make(map[string]model.Nonce),
		mappings: make(map[string]string),
	}
}

func (s *MemStore) GetCredential(_ context.Context, uid string) (model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[uid]
	if !ok {
		return model.Credential{}, model.ErrNotFound
	}
	return cred, nil
}

func (s *MemStore) CreateFreshCredential(_ context.Context, cred model.Credential, nonce model.Nonce, startIndex int) (model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.slots)
	if n == 0 {
		return model.Credential{}, model.ErrPoolExhausted
	}
	borrowed := -1
	for i := 0; i < n; i++ {
		idx := (startIndex - 1 + i) % n
		if s.slots[idx].Available {
			borrowed = idx
			break
		}
	}
	if borrowed < 0 {
		return model.Credential{}, model.ErrPoolExhausted
	}

	s.slots[borrowed].Available = false
	cred.Verifier = s.slots[borrowed].Value
	s.creds[cred.UID] = cred
	s.nonces[nonce.Value] = nonce
	return cred, nil
}

func (s *MemStore) CreateNonce(_ context.Context, nonce model.Nonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[nonce.Value] = nonce
	return nil
}

func (s *MemStore) ConsumeNonce(_ context.Context, value string, intents []model.Intent, now time.Time) (model.ConsumedChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.nonces[value]
	if !ok || !nonce.ExpiresAt.After(now) || !intentIn(nonce.Intent, intents) {
		return model.ConsumedChallenge{}, model.ErrNotFound
	}
	cred, ok := s.creds[nonce.UID]
	if !ok {
		return model.ConsumedChallenge{}, model.ErrNotFound
	}
	delete(s.nonces, value)
	return model.ConsumedChallenge{Nonce: nonce, Credential: cred}, nil
}

func (s *MemStore) FinalizeCredential(_ context.Context, uid, verifier, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[uid]
	if !ok {
		return model.ErrNotFound
	}
	s.releaseLocked(cred.Verifier)
	cred.Verifier = verifier
	s.creds[uid] = cred
	s.mappings[verifier] = fingerprint
	return nil
}

func (s *MemStore) RotateVerifier(_ context.Context, fingerprint, verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for current, fp := range s.mappings {
		if fp != fingerprint {
			continue
		}
		delete(s.mappings, current)
		s.mappings[verifier] = fp
		for uid, cred := range s.creds {
			if cred.Verifier == current {
				cred.Verifier = verifier
				s.creds[uid] = cred
			}
		}
		return nil
	}
	return model.ErrNotFound
}

func (s *MemStore) RotateFingerprint(_ context.Context, oldFingerprint, newFingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for verifier, fp := range s.mappings {
		if fp == oldFingerprint {
			s.mappings[verifier] = newFingerprint
			return nil
		}
	}
	return model.ErrNotFound
}

func (s *MemStore) GetKeyMapping(_ context.Context, verifier string) (model.KeyMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp, ok := s.mappings[verifier]
	if !ok {
		return model.KeyMapping{}, model.ErrNotFound
	}
	return model.KeyMapping{Verifier: verifier, Fingerprint: fp}, nil
}

func (s *MemStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for value, nonce := range s.nonces {
		if nonce.ExpiresAt.After(now) {
			continue
		}
		delete(s.nonces, value)
		reaped++
		if nonce.Intent == model.IntentRegister {
			if cred, ok := s.creds[nonce.UID]; ok {
				delete(s.creds, nonce.UID)
				s.releaseLocked(cred.Verifier)
			}
		}
	}
	return reaped, nil
}

func (s *MemStore) SeedPlaceholders(_ context.Context, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots = make([]model.PlaceholderSlot, len(values))
	for i, v := range values {
		s.slots[i] = model.PlaceholderSlot{Index: i + 1, Value: v, Available: true}
	}
	return nil
}

func (s *MemStore) ClearPlaceholders(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = nil
	return nil
}

func (s *MemStore) AvailablePlaceholders(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	free := 0
	for _, slot := range s.slots {
		if slot.Available {
			free++
		}
	}
	return free, nil
}

// BorrowedValues returns the values currently held by credentials, for
// invariant assertions in tests.
func (s *MemStore) BorrowedValues() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, slot := range s.slots {
		if !slot.Available {
			out = append(out, slot.Value)
		}
	}
	return out
}

// HasCredential reports whether uid currently has a credential row.
func (s *MemStore) HasCredential(uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.creds[uid]
	return ok
}

func (s *MemStore) releaseLocked(value string) {
	for i := range s.slots {
		if s.slots[i].Value == value {
			s.slots[i].Available = true
			return
		}
	}
}

func intentIn(intent model.Intent, intents []model.Intent) bool {
	for _, candidate := range intents {
		if intent == candidate {
			return true
		}
	}
	return false
}
