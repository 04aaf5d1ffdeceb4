// Package auth defines the identity contract the data layer depends on.
// The data layer never authenticates anybody itself; it only needs to
// know who the current principal is and when that changes.
package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/unimart/unimart/pkg/models"
)

// ErrNotSignedIn is returned when no principal is signed in.
var ErrNotSignedIn = errors.New("not signed in")

// Principal is the authenticated identity of the current session.
type Principal struct {
	UID   string
	Email string
	Role  models.Role
}

// Event reports a change of the current principal. Principal is nil on
// sign-out.
type Event struct {
	Principal *Principal
}

// Provider supplies the current principal and a stream of sign-in and
// sign-out events.
type Provider interface {
	// CurrentPrincipal returns the signed-in principal, or
	// ErrNotSignedIn when there is none.
	CurrentPrincipal(ctx context.Context) (*Principal, error)
	// Events returns a channel of principal changes plus a cancel
	// function that releases the subscription.
	Events(ctx context.Context) (<-chan Event, func(), error)
}

// StaticProvider is an in-memory Provider for tests and local-only use.
// The zero value is a provider with nobody signed in.
type StaticProvider struct {
	mu        sync.Mutex
	principal *Principal
	watchers  map[int]chan Event
	nextID    int
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider returns a provider signed in as p. Pass nil for a
// signed-out provider.
func NewStaticProvider(p *Principal) *StaticProvider {
	return &StaticProvider{principal: p}
}

func (s *StaticProvider) CurrentPrincipal(ctx context.Context) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return nil, ErrNotSignedIn
	}
	p := *s.principal
	return &p, nil
}

// SignIn sets the current principal and notifies watchers.
func (s *StaticProvider) SignIn(p Principal) {
	s.setPrincipal(&p)
}

// SignOut clears the current principal and notifies watchers.
func (s *StaticProvider) SignOut() {
	s.setPrincipal(nil)
}

func (s *StaticProvider) setPrincipal(p *Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = p
	for _, ch := range s.watchers {
		select {
		case ch <- Event{Principal: p}:
		default:
		}
	}
}

func (s *StaticProvider) Events(ctx context.Context) (<-chan Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchers == nil {
		s.watchers = make(map[int]chan Event)
	}
	id := s.nextID
	s.nextID++
	ch := make(chan Event, 8)
	s.watchers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers, id)
			close(ch)
		})
	}
	return ch, cancel, nil
}
