package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/rzn-members/internal/model"
)

// ErrNoSession is returned by Resolve when the token does not name a live session.
var ErrNoSession = errors.New("auth: no active session")

// DefaultSessionTTL applies when NewSessionManager is given a non-positive TTL.
const DefaultSessionTTL = 12 * time.Hour

type session struct {
	identity model.Identity
	expires  time.Time
}

// SessionManager is the in-process registry of live sessions.
//
// Sessions live only as long as the process; a restart logs everybody out.
// All methods are safe for concurrent use.
type SessionManager struct {
	tokens *TokenService
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]session
}

func NewSessionManager(tokens *TokenService, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		tokens:   tokens,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]session),
	}
}

// TTL is the lifetime of new sessions.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create registers a new session for the user and returns its token along
// with the identity carrying the fresh session id.
func (m *SessionManager) Create(userID, handle string, role model.Role) (string, model.Identity, error) {
	id := model.Identity{
		SessionID: xid.New().String(),
		UserID:    userID,
		Handle:    handle,
		Role:      role,
	}

	token, err := m.tokens.Generate(id, m.ttl)
	if err != nil {
		return "", model.Identity{}, fmt.Errorf("auth: creating session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	m.sessions[id.SessionID] = session{identity: id, expires: m.now().Add(m.ttl)}

	return token, id, nil
}

// Resolve returns the identity bound to token. Invalid tokens, expired
// sessions and ended sessions all yield an error.
func (m *SessionManager) Resolve(token string) (model.Identity, error) {
	c, err := m.tokens.Validate(token)
	if err != nil {
		return model.Identity{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[c.ID]
	if !ok {
		return model.Identity{}, ErrNoSession
	}
	if !m.now().Before(s.expires) {
		delete(m.sessions, c.ID)
		return model.Identity{}, ErrNoSession
	}
	// A token minted for one user must never resolve to another.
	if s.identity.UserID != c.Subject {
		return model.Identity{}, ErrNoSession
	}
	return s.identity, nil
}

// End destroys a session. It reports whether the session existed; ending an
// unknown session is not an error.
func (m *SessionManager) End(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	return ok
}

// EndUser destroys every session bound to userID and returns how many there were.
func (m *SessionManager) EndUser(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for sid, s := range m.sessions {
		if s.identity.UserID == userID {
			delete(m.sessions, sid)
			n++
		}
	}
	return n
}

// Active returns the number of unexpired sessions.
func (m *SessionManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	return len(m.sessions)
}

func (m *SessionManager) pruneLocked() {
	now := m.now()
	for sid, s := range m.sessions {
		if !now.Before(s.expires) {
			delete(m.sessions, sid)
		}
	}
}
