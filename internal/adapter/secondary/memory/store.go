// Package memory keeps confirmations in process memory. State is lost on restart.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

// Store implements ConfirmationStore and EventLog. Every lookup key is an
// alias of the external ID, so all keys always resolve to the same record.
type Store struct {
	mu      sync.RWMutex
	records map[string]*core.PaymentConfirmation
	aliases map[string]string
	events  []core.WebhookEvent
	now     func() time.Time
}

var (
	_ output.ConfirmationStore = (*Store)(nil)
	_ output.EventLog          = (*Store)(nil)
)

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		records: make(map[string]*core.PaymentConfirmation),
		aliases: make(map[string]string),
		now:     time.Now,
	}
}

// Save creates or overwrites the confirmation for its external ID
func (s *Store) Save(_ context.Context, c *core.PaymentConfirmation) error {
	record := *c

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.records[record.ExternalID]; ok {
		s.dropAliases(old)
	}
	s.records[record.ExternalID] = &record
	for _, key := range record.Keys() {
		if key != record.ExternalID {
			s.aliases[key] = record.ExternalID
		}
	}
	return nil
}

// Get resolves identifier as an external ID, then as an alias, then as a token
func (s *Store) Get(_ context.Context, identifier string) (*core.PaymentConfirmation, error) {
	s.mu.RLock()
	record, ok := s.resolve(identifier)
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound
	}

	if record.Expired(s.now()) {
		s.mu.Lock()
		// re-check, a newer webhook may have replaced it meanwhile
		if current, ok := s.records[record.ExternalID]; ok && current.Expired(s.now()) {
			s.remove(current)
		}
		s.mu.Unlock()
		return nil, core.ErrNotFound
	}

	c := *record
	return &c, nil
}

func (s *Store) resolve(identifier string) (*core.PaymentConfirmation, bool) {
	// an external ID wins over another record's invoice ID alias
	if record, ok := s.records[identifier]; ok {
		return record, true
	}
	for _, key := range []string{identifier, core.TokenPrefix + identifier} {
		if ext, ok := s.aliases[key]; ok {
			record, ok := s.records[ext]
			return record, ok
		}
	}
	return nil, false
}

// List returns every stored confirmation, newest first
func (s *Store) List(_ context.Context) ([]core.PaymentConfirmation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	list := lo.FilterMap(lo.Values(s.records), func(c *core.PaymentConfirmation, _ int) (core.PaymentConfirmation, bool) {
		return *c, !c.Expired(now)
	})
	slices.SortFunc(list, func(a, b core.PaymentConfirmation) int {
		return b.ReceivedAt.Compare(a.ReceivedAt)
	})
	return list, nil
}

// DeleteExpired drops every record whose TTL has passed
func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.records {
		if c.Expired(now) {
			s.remove(c)
			n++
		}
	}
	return n, nil
}

func (s *Store) remove(c *core.PaymentConfirmation) {
	s.dropAliases(c)
	delete(s.records, c.ExternalID)
}

func (s *Store) dropAliases(c *core.PaymentConfirmation) {
	for _, key := range c.Keys() {
		if s.aliases[key] == c.ExternalID {
			delete(s.aliases, key)
		}
	}
}

// Append adds evt to the front of the log, dropping the oldest beyond the cap
func (s *Store) Append(_ context.Context, evt core.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = slices.Insert(s.events, 0, evt)
	if len(s.events) > output.MaxRecentEvents {
		s.events = s.events[:output.MaxRecentEvents]
	}
	return nil
}

// Recent returns up to limit events, newest first
func (s *Store) Recent(_ context.Context, limit int) ([]core.WebhookEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	return slices.Clone(s.events[:limit]), nil
}
