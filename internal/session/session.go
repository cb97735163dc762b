// Package session resolves bearer tokens into the signed-in user and
// notifies listeners when a user signs out.
package session

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNoSession is returned when a token does not identify a user.
	ErrNoSession = errors.New("no active session")
)

// User is the profile carried by a session.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"fullName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Session is the current authenticated session.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"-"`
}

// Event is delivered to subscribers on session changes.
type Event struct {
	Type   string
	UserID string
}

// EventSignedOut is emitted when a user ends their session.
const EventSignedOut = "signed_out"

// Provider is the auth abstraction used by the API layer.
type Provider interface {
	Resolve(ctx context.Context, token string) (*Session, error)
	Subscribe(fn func(Event)) (unsubscribe func())
	SignOut(ctx context.Context, userID string) error
}

// listeners is shared by the provider implementations.
type listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(Event)
}

func (l *listeners) subscribe(fn func(Event)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(Event))
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

func (l *listeners) emit(ev Event) {
	l.mu.Lock()
	fns := make([]func(Event), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
