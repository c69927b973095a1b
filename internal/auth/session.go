package auth

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jhousvawls/daily-coach/internal/pubsub"
	"github.com/jhousvawls/daily-coach/internal/watch"
)

// SessionClaims is the JWT stored in the session file.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs a session token for userID valid for ttl.
func IssueToken(secret []byte, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies an HS256 session token and returns its identity.
func ParseToken(secret []byte, token string) (Identity, error) {
	var claims SessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrNoSession)
	}

	id := Identity{UserID: claims.Subject, Email: claims.Email}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// WriteSession stores token at path with owner-only permissions.
func WriteSession(path, token string) error {
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// SessionProvider reads the identity from a signed token file and follows
// changes to it: signing in writes the file, signing out removes it.
type SessionProvider struct {
	path   string
	secret []byte
	logger *log.Logger
	now    func() time.Time

	mu       sync.RWMutex
	identity Identity
	present  bool
	bus      *pubsub.Bus[Event]

	watcher *watch.Watcher
	wg      sync.WaitGroup
}

var _ Provider = (*SessionProvider)(nil)

// NewSessionProvider loads the session at path. A missing or invalid file
// leaves the provider signed out. If logger is nil, log output is discarded.
func NewSessionProvider(path string, secret []byte, logger *log.Logger) *SessionProvider {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	p := &SessionProvider{
		path:   path,
		secret: secret,
		logger: logger,
		now:    time.Now,
		bus:    pubsub.New[Event](),
	}
	p.Reload()
	return p
}

// CurrentUser implements Provider. An expired session reads as absent.
func (p *SessionProvider) CurrentUser() (Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.present {
		return Identity{}, false
	}
	if !p.identity.ExpiresAt.IsZero() && !p.now().Before(p.identity.ExpiresAt) {
		return Identity{}, false
	}
	return p.identity, true
}

// Subscribe implements Provider.
func (p *SessionProvider) Subscribe(buffer int) (<-chan Event, func()) {
	return p.bus.Subscribe(buffer)
}

// Reload rereads the session file and publishes an Event if the identity
// changed.
func (p *SessionProvider) Reload() {
	id, err := p.read()
	present := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Printf("WARNING: ignoring session file %s: %v", p.path, err)
	}

	p.mu.Lock()
	changed := present != p.present || id != p.identity
	p.identity, p.present = id, present
	p.mu.Unlock()

	if changed {
		p.bus.Publish(Event{Identity: id, Present: present})
	}
}

func (p *SessionProvider) read() (Identity, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return Identity{}, err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return Identity{}, ErrNoSession
	}
	return ParseToken(p.secret, token)
}

// Watch follows the session file until Close.
func (p *SessionProvider) Watch() error {
	w, err := watch.New()
	if err != nil {
		return err
	}
	if err := w.Start(p.path); err != nil {
		_ = w.Stop()
		return err
	}
	p.watcher = w

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case _, ok := <-w.Events():
				if !ok {
					return
				}
				p.Reload()
			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				p.logger.Printf("WARNING: session watcher error: %v", err)
			}
		}
	}()
	return nil
}

// Close stops watching and closes subscriber channels.
func (p *SessionProvider) Close() error {
	var err error
	if p.watcher != nil {
		err = p.watcher.Stop()
		p.wg.Wait()
	}
	p.bus.Close()
	return err
}
