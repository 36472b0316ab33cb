// Package session owns the login state: it is the only component allowed
// to mutate the persisted session fields, and it schedules its own
// expiry. Everything else just asks it whether the user is logged in.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nrekik/b1-purchasing-portal/internal/models"
	"github.com/nrekik/b1-purchasing-portal/internal/servicelayer"
)

// API is the slice of the Service Layer client the manager needs.
type API interface {
	Login(ctx context.Context, creds servicelayer.Credentials) (servicelayer.LoginResult, error)
	Logout(ctx context.Context) error
	PrimeSession(sessionID string)
}

// Persister stores the session fields durably across restarts.
type Persister interface {
	SaveSession(models.Session) error
	LoadSession() (models.Session, error)
	ClearSession() error
}

// Manager tracks exactly one session per client. It re-arms a one-shot
// expiry timer whenever the session identity changes and runs the
// registered end hooks when the session is cleared for any reason
// (logout, expiry, stale restore).
type Manager struct {
	api            API
	store          Persister
	logoutFailOpen bool

	mu    sync.Mutex
	cur   models.Session
	timer *time.Timer
	onEnd []func()

	now func() time.Time // override in tests
}

func NewManager(api API, store Persister, logoutFailOpen bool) *Manager {
	return &Manager{
		api:            api,
		store:          store,
		logoutFailOpen: logoutFailOpen,
		now:            time.Now,
	}
}

// OnSessionEnd registers a hook run after the session is cleared. Hooks
// are called outside the manager lock.
func (m *Manager) OnSessionEnd(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = append(m.onEnd, fn)
}

// Current returns the in-memory session value.
func (m *Manager) Current() models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// LoggedIn reports whether a valid session exists right now.
func (m *Manager) LoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur.Valid(m.now())
}

// Restore loads the persisted session at startup. A still-valid session
// is adopted (cookie jar re-primed, expiry timer armed); a stale one is
// cleared from storage. No network call is made either way.
func (m *Manager) Restore() models.Session {
	sess, err := m.store.LoadSession()
	if err != nil {
		log.Printf("session: restore failed: %v", err)
		return models.Session{}
	}
	if sess.Empty() {
		return models.Session{}
	}
	if sess.Expired(m.now()) {
		log.Printf("session: persisted session expired, clearing")
		if err := m.store.ClearSession(); err != nil {
			log.Printf("session: clear stale session: %v", err)
		}
		return models.Session{}
	}

	m.mu.Lock()
	m.cur = sess
	m.scheduleExpiryLocked()
	m.mu.Unlock()

	m.api.PrimeSession(sess.SessionID)
	log.Printf("session: restored, %s remaining", sess.Remaining(m.now()).Round(time.Second))
	return sess
}

// Login authenticates against the backend. On success the new session is
// stamped with the current time, persisted, and its expiry timer armed.
// On any failure nothing is mutated.
func (m *Manager) Login(ctx context.Context, creds servicelayer.Credentials) (models.Session, error) {
	res, err := m.api.Login(ctx, creds)
	if err != nil {
		return models.Session{}, err
	}

	sess := models.Session{
		SessionID:      res.SessionID,
		TimeoutMinutes: res.SessionTimeout,
		CreatedAtMs:    m.now().UnixMilli(),
	}

	m.mu.Lock()
	m.cur = sess
	if err := m.store.SaveSession(sess); err != nil {
		log.Printf("session: persist failed: %v", err)
	}
	m.scheduleExpiryLocked()
	m.mu.Unlock()

	log.Printf("session: logged in, timeout %dm", sess.TimeoutMinutes)
	return sess, nil
}

// Logout terminates the remote session and clears local state. When the
// remote call fails the local session is kept if the manager was built
// fail-open (the remote session store is the authority); fail-closed
// clears it regardless.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.api.Logout(ctx)
	if err != nil {
		log.Printf("session: logout failed: %v", err)
		if m.logoutFailOpen {
			return err
		}
	}
	m.end()
	return err
}

// ClearStale clears local session state without a network call. The
// protected-view guard uses this when it finds an invalid session.
func (m *Manager) ClearStale() {
	m.end()
}

// end clears the in-memory and persisted session and runs the end hooks.
func (m *Manager) end() {
	m.mu.Lock()
	wasActive := !m.cur.Empty()
	m.cur = models.Session{}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if err := m.store.ClearSession(); err != nil {
		log.Printf("session: clear failed: %v", err)
	}
	hooks := append([]func(){}, m.onEnd...)
	m.mu.Unlock()

	if wasActive {
		for _, fn := range hooks {
			fn()
		}
	}
}

// scheduleExpiryLocked arms the one-shot auto-logout timer for the
// current session, replacing any previous one. Caller holds the lock.
func (m *Manager) scheduleExpiryLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	remaining := m.cur.Remaining(m.now())
	if remaining <= 0 {
		// Already expired: clear without waiting. Done on a goroutine so
		// the caller's lock is not re-entered.
		go m.end()
		return
	}
	id := m.cur.SessionID
	m.timer = time.AfterFunc(remaining, func() {
		m.mu.Lock()
		stale := m.cur.SessionID != id
		m.mu.Unlock()
		if stale {
			return // a newer session replaced this timer's target
		}
		log.Printf("session: timeout reached, logging out")
		m.end()
	})
}
