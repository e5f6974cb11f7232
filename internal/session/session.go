// Package session tracks the signed-in identity of a client process as an
// explicit three-state machine and derives route-guard decisions from it.
//
// Tracker and the guards are the client-side API: a Go client feeds the
// identity change notifications of its auth SDK into Tracker.Run and gates
// its screens with RequireAuth and RequireAdmin. The server holds no
// long-lived session; it answers GET /users/me/session with Resolve for the
// verified caller of each request.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/models"
)

// Status is the phase of a session.
type Status int

const (
	// Loading means no identity notification has been processed yet.
	Loading Status = iota
	SignedOut
	SignedIn
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case SignedOut:
		return "signedOut"
	case SignedIn:
		return "signedIn"
	}
	return "unknown"
}

// MarshalText renders the status as its name in JSON responses.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// User is the identity published while signed in.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	IsAdmin     bool   `json:"isAdmin"`
}

// State is a snapshot of the session. User is non-nil only when Status is SignedIn.
type State struct {
	Status Status `json:"status"`
	User   *User  `json:"user"`
}

// AdminChecker resolves admin status for a uid, failing closed.
type AdminChecker interface {
	IsAdmin(ctx context.Context, uid string) bool
}

// Resolve turns one identity notification into a state. A nil identity means
// signed out.
func Resolve(ctx context.Context, checker AdminChecker, id *models.Identity) State {
	if id == nil || id.UID == "" {
		return State{Status: SignedOut}
	}
	return State{
		Status: SignedIn,
		User: &User{
			UID:         id.UID,
			Email:       id.Email,
			DisplayName: id.DisplayName,
			PhotoURL:    id.PhotoURL,
			IsAdmin:     checker.IsAdmin(ctx, id.UID),
		},
	}
}

// Tracker holds the current session state of a process and fans changes out to
// subscribers. The zero value is not usable; call NewTracker.
type Tracker struct {
	checker AdminChecker
	logger  *zap.Logger

	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int

	ready     chan struct{}
	readyOnce sync.Once
}

// NewTracker returns a tracker in the Loading state.
func NewTracker(checker AdminChecker, logger *zap.Logger) *Tracker {
	return &Tracker{
		checker: checker,
		logger:  logger,
		state:   State{Status: Loading},
		subs:    make(map[int]chan State),
		ready:   make(chan struct{}),
	}
}

// Run processes identity notifications in order until ctx is done or the
// channel is closed.
func (t *Tracker) Run(ctx context.Context, notifications <-chan *models.Identity) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id, ok := <-notifications:
			if !ok {
				return nil
			}
			t.Observe(ctx, id)
		}
	}
}

// Observe applies a single identity notification.
func (t *Tracker) Observe(ctx context.Context, id *models.Identity) State {
	next := Resolve(ctx, t.checker, id)

	t.mu.Lock()
	t.state = next
	for _, ch := range t.subs {
		deliver(ch, next)
	}
	t.mu.Unlock()

	t.readyOnce.Do(func() { close(t.ready) })
	if next.User != nil {
		t.logger.Debug("Session signed in", zap.String("uid", next.User.UID), zap.Bool("isAdmin", next.User.IsAdmin))
	} else {
		t.logger.Debug("Session signed out")
	}
	return next
}

// State returns the current snapshot.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Subscribe returns a channel that receives the current state immediately and
// every later change. Slow readers only see the latest state. The returned
// func unsubscribes and closes the channel.
func (t *Tracker) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	ch <- t.state
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			close(ch)
			t.mu.Unlock()
		})
	}
}

// WaitReady blocks until the first notification has been processed.
func (t *Tracker) WaitReady(ctx context.Context) (State, error) {
	select {
	case <-t.ready:
		return t.State(), nil
	case <-ctx.Done():
		return State{Status: Loading}, ctx.Err()
	}
}

// deliver replaces any undelivered state with s. Callers hold t.mu.
func deliver(ch chan State, s State) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- s
}
