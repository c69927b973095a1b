// Package auth provides the identity provider the sync engine and migration
// consult: the current user, if any, and a stream of identity changes.
package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/jhousvawls/daily-coach/internal/pubsub"
)

// ErrNoSession is returned when no valid session is available.
var ErrNoSession = errors.New("no active session")

// Identity is an authenticated user handle.
type Identity struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Event reports an identity change. Present is false on sign-out.
type Event struct {
	Identity Identity
	Present  bool
}

// Provider is the identity provider contract.
type Provider interface {
	// CurrentUser returns the signed-in identity.
	CurrentUser() (Identity, bool)

	// Subscribe delivers an Event on every identity change.
	Subscribe(buffer int) (<-chan Event, func())
}

// Static is a Provider whose identity is set explicitly.
type Static struct {
	mu       sync.RWMutex
	identity Identity
	present  bool
	bus      *pubsub.Bus[Event]
}

var _ Provider = (*Static)(nil)

// NewStatic returns a Provider signed in as userID, or signed out when userID
// is empty.
func NewStatic(userID string) *Static {
	s := &Static{bus: pubsub.New[Event]()}
	if userID != "" {
		s.identity = Identity{UserID: userID}
		s.present = true
	}
	return s
}

// CurrentUser implements Provider.
func (s *Static) CurrentUser() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.present
}

// Subscribe implements Provider.
func (s *Static) Subscribe(buffer int) (<-chan Event, func()) {
	return s.bus.Subscribe(buffer)
}

// SignIn replaces the identity.
func (s *Static) SignIn(id Identity) {
	s.mu.Lock()
	s.identity, s.present = id, true
	s.mu.Unlock()
	s.bus.Publish(Event{Identity: id, Present: true})
}

// SignOut clears the identity.
func (s *Static) SignOut() {
	s.mu.Lock()
	was := s.present
	s.identity, s.present = Identity{}, false
	s.mu.Unlock()
	if was {
		s.bus.Publish(Event{})
	}
}
