package draft

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"machine-fleet-backend/internal/model"
)

// ErrSessionNotFound is returned for unknown, expired or foreign sessions.
var ErrSessionNotFound = errors.New("draft session not found")

// Store loads and persists machines for editing sessions.
type Store interface {
	Saver
	GetMachine(ctx context.Context, id string) (*model.Machine, error)
}

// Session is one open editor owned by one user.
type Session struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"`
	MachineID string    `json:"machineId,omitempty"`
	OpenedAt  time.Time `json:"openedAt"`
	Editor    *Editor   `json:"-"`
}

// Registry keeps editing sessions in memory. Idle sessions expire after the
// configured TTL; every access extends it.
type Registry struct {
	store    Store
	sessions *cache.Cache
	ttl      time.Duration
}

// NewRegistry creates a registry whose sessions expire after ttl of inactivity.
func NewRegistry(store Store, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Registry{
		store:    store,
		sessions: cache.New(ttl, ttl*2),
		ttl:      ttl,
	}
}

// Open loads a machine and starts editing it.
func (r *Registry) Open(ctx context.Context, ownerID, machineID string) (*Session, error) {
	m, err := r.store.GetMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	if m.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: machine %s", ErrSessionNotFound, machineID)
	}

	editor := NewEditor(m, r.store)
	if err := editor.Begin(); err != nil {
		return nil, err
	}
	return r.add(ownerID, machineID, editor), nil
}

// OpenNew starts a creation session for a machine that does not exist yet.
func (r *Registry) OpenNew(ownerID string, template *model.Machine) *Session {
	if template == nil {
		template = &model.Machine{}
	}
	template = template.Clone()
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	template.OwnerID = ownerID
	return r.add(ownerID, template.ID, NewCreateEditor(template, r.store))
}

func (r *Registry) add(ownerID, machineID string, editor *Editor) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		MachineID: machineID,
		OpenedAt:  time.Now().UTC(),
		Editor:    editor,
	}
	r.sessions.Set(s.ID, s, r.ttl)
	return s
}

// Get returns the owner's session and extends its lifetime.
func (r *Registry) Get(ownerID, id string) (*Session, error) {
	v, found := r.sessions.Get(id)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s := v.(*Session)
	if s.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	r.sessions.Set(id, s, r.ttl)
	return s, nil
}

// Close discards the owner's session.
func (r *Registry) Close(ownerID, id string) error {
	if _, err := r.Get(ownerID, id); err != nil {
		return err
	}
	r.sessions.Delete(id)
	return nil
}

// DropOwner discards every session of ownerID, e.g. after sign-out.
func (r *Registry) DropOwner(ownerID string) int {
	var dropped int
	for id, item := range r.sessions.Items() {
		if s, ok := item.Object.(*Session); ok && s.OwnerID == ownerID {
			r.sessions.Delete(id)
			dropped++
		}
	}
	if dropped > 0 {
		log.Printf("Dropped %d draft sessions for owner %s", dropped, ownerID)
	}
	return dropped
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	return r.sessions.ItemCount()
}
