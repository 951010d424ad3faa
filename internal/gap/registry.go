package gap

import (
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-ble/internal/gatt"
)

// Options configures a Registry.
type Options struct {
	// Store receives decoded identity values. Required in production;
	// defaults to a store that discards values.
	Store IdentityStore

	// Logger defaults to a no-op logger.
	Logger Logger
}

// Registry tracks one Session per device.
type Registry struct {
	store    IdentityStore
	logger   Logger
	sessions map[string]*Session
	nextGen  uint64

	sessionCount      atomic.Int64
	readsIssued       atomic.Uint64
	readsFailed       atomic.Uint64
	decodeErrors      atomic.Uint64
	duplicateBindings atomic.Uint64
	namesApplied      atomic.Uint64
	appearanceApplied atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		store:    opts.Store,
		logger:   opts.Logger,
		sessions: make(map[string]*Session),
	}
	if r.store == nil {
		r.store = noopStore{}
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	return r
}

// Open starts tracking dev in the unbound state.
func (r *Registry) Open(dev Device) error {
	if dev.ID == "" {
		return ErrInvalidDevice
	}
	if _, exists := r.sessions[dev.ID]; exists {
		r.logger.Error("device probed twice", "device_id", dev.ID, "address", dev.Address)
		return fmt.Errorf("%w: %s", ErrDuplicateSession, dev.ID)
	}

	r.nextGen++
	r.sessions[dev.ID] = &Session{device: dev, gen: r.nextGen}
	r.sessionCount.Add(1)
	r.logger.Debug("identity session opened", "device_id", dev.ID, "address", dev.Address)
	return nil
}

// Close stops tracking dev. The watch is cancelled before the database and
// client handles are released; reads still in flight never complete.
func (r *Registry) Close(dev Device) error {
	s, ok := r.sessions[dev.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, dev.ID)
	}

	r.unbind(s)
	delete(r.sessions, dev.ID)
	r.sessionCount.Add(-1)
	r.logger.Debug("identity session closed", "device_id", dev.ID)
	return nil
}

// Rebind attaches the session for dev to a new database/client pair,
// dropping any previous binding, then scans db for a GAP service that is
// already present. The whole transition completes before Rebind returns.
func (r *Registry) Rebind(dev Device, db Database, client Client) error {
	s, ok := r.sessions[dev.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, dev.ID)
	}
	if db == nil || client == nil {
		return ErrInvalidBinding
	}

	r.unbind(s)

	s.db = db.Acquire()
	s.client = client.Acquire()

	ref := sessionRef{id: dev.ID, gen: s.gen}
	s.watchID = s.db.RegisterWatch(gatt.GAPServiceUUID,
		func(svc *gatt.Service) { r.serviceAdded(ref, svc) },
		func(svc *gatt.Service) { r.serviceRemoved(ref, svc) },
	)
	if s.watchID == 0 {
		r.unbind(s)
		return fmt.Errorf("%w: %s", ErrWatchRegistration, dev.ID)
	}

	r.logger.Debug("identity session bound", "device_id", dev.ID)
	r.scanServices(ref)
	return nil
}

// unbind moves s to the unbound state and invalidates every outstanding
// reference to its current generation.
func (r *Registry) unbind(s *Session) {
	s.service = nil

	if s.db != nil {
		s.db.UnregisterWatch(s.watchID)
		s.db.Release()
	}
	if s.client != nil {
		s.client.Release()
	}
	s.db = nil
	s.watchID = 0
	s.client = nil

	r.nextGen++
	s.gen = r.nextGen
}

// resolve returns the session ref points at if it is still current.
func (r *Registry) resolve(ref sessionRef) (*Session, bool) {
	s, ok := r.sessions[ref.id]
	if !ok || s.gen != ref.gen {
		return nil, false
	}
	return s, true
}

// Session returns the session for a device ID.
func (r *Registry) Session(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Stats returns a snapshot of the registry counters. Safe to call from any
// goroutine.
func (r *Registry) Stats() Stats {
	return Stats{
		Sessions:          int(r.sessionCount.Load()),
		ReadsIssued:       r.readsIssued.Load(),
		ReadsFailed:       r.readsFailed.Load(),
		DecodeErrors:      r.decodeErrors.Load(),
		DuplicateBindings: r.duplicateBindings.Load(),
		NamesApplied:      r.namesApplied.Load(),
		AppearanceApplied: r.appearanceApplied.Load(),
	}
}
