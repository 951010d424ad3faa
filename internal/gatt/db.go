package gatt

import (
	"fmt"
	"sort"
	"sync"
)

// WatchID identifies a watch registration. Zero is never a valid ID.
type WatchID uint64

// ServiceFunc is invoked with a service that was added to or removed from
// a DB.
type ServiceFunc func(svc *Service)

type watch struct {
	owner   *DBHandle
	filter  UUID
	added   ServiceFunc
	removed ServiceFunc
	active  bool
}

// DB is the local mirror of one remote device's attribute database.
// Safe for concurrent use.
type DB struct {
	mu        sync.Mutex
	services  []*Service // sorted by Handle
	watches   map[WatchID]*watch
	nextWatch WatchID
	refs      int
}

// NewDB creates an empty database.
func NewDB() *DB {
	return &DB{
		watches: make(map[WatchID]*watch),
	}
}

// Acquire returns a new counted reference to the database.
func (db *DB) Acquire() *DBHandle {
	db.mu.Lock()
	db.refs++
	db.mu.Unlock()
	return &DBHandle{db: db}
}

// Refs returns the number of unreleased handles.
func (db *DB) Refs() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.refs
}

// WatchCount returns the number of active watch registrations.
func (db *DB) WatchCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.watches)
}

// ServiceCount returns the number of services currently in the database.
func (db *DB) ServiceCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.services)
}

// AddService inserts a discovered service and notifies watchers.
func (db *DB) AddService(def ServiceDefinition) (*Service, error) {
	if !def.validate() {
		return nil, fmt.Errorf("%w: handles 0x%04x-0x%04x", ErrInvalidService, def.Handle, def.EndHandle)
	}
	svc := newService(def)

	db.mu.Lock()
	for _, existing := range db.services {
		if existing.overlaps(svc) {
			db.mu.Unlock()
			return nil, fmt.Errorf("%w: 0x%04x-0x%04x overlaps 0x%04x-0x%04x",
				ErrInvalidService, svc.Handle, svc.EndHandle, existing.Handle, existing.EndHandle)
		}
	}
	idx := sort.Search(len(db.services), func(i int) bool {
		return db.services[i].Handle > svc.Handle
	})
	db.services = append(db.services, nil)
	copy(db.services[idx+1:], db.services[idx:])
	db.services[idx] = svc
	watches := db.snapshotLocked()
	db.mu.Unlock()

	db.notify(watches, svc, true)
	return svc, nil
}

// RemoveService removes the service starting at handle and notifies
// watchers. It reports whether a service was removed.
func (db *DB) RemoveService(handle uint16) bool {
	db.mu.Lock()
	idx := -1
	for i, s := range db.services {
		if s.Handle == handle {
			idx = i
			break
		}
	}
	if idx < 0 {
		db.mu.Unlock()
		return false
	}
	svc := db.services[idx]
	db.services = append(db.services[:idx], db.services[idx+1:]...)
	watches := db.snapshotLocked()
	db.mu.Unlock()

	db.notify(watches, svc, false)
	return true
}

// Clear removes every service, notifying watchers for each.
func (db *DB) Clear() {
	db.mu.Lock()
	removed := db.services
	db.services = nil
	watches := db.snapshotLocked()
	db.mu.Unlock()

	for _, svc := range removed {
		db.notify(watches, svc, false)
	}
}

// Lookup returns the service starting at handle, if any.
func (db *DB) Lookup(handle uint16) (*Service, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, s := range db.services {
		if s.Handle == handle {
			return s, true
		}
	}
	return nil, false
}

func (db *DB) snapshotLocked() []*watch {
	ids := make([]WatchID, 0, len(db.watches))
	for id := range db.watches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*watch, 0, len(ids))
	for _, id := range ids {
		out = append(out, db.watches[id])
	}
	return out
}

// notify runs callbacks without holding the lock. A watch unregistered by
// an earlier callback in the same round is skipped.
func (db *DB) notify(watches []*watch, svc *Service, added bool) {
	for _, w := range watches {
		if !w.filter.IsZero() && w.filter != svc.UUID {
			continue
		}
		db.mu.Lock()
		active := w.active
		db.mu.Unlock()
		if !active {
			continue
		}
		fn := w.removed
		if added {
			fn = w.added
		}
		if fn != nil {
			fn(svc)
		}
	}
}

func (db *DB) contains(svc *Service) bool {
	for _, s := range db.services {
		if s == svc {
			return true
		}
	}
	return false
}

// DBHandle is one holder's reference to a DB. Watches registered through a
// handle are dropped when the handle is released.
type DBHandle struct {
	db       *DB
	released bool
	watches  []WatchID
}

// DB returns the underlying database.
func (h *DBHandle) DB() *DB {
	return h.db
}

// RegisterWatch subscribes to service additions and removals. A zero filter
// matches every service. Returns 0 if the handle has been released.
func (h *DBHandle) RegisterWatch(filter UUID, added, removed ServiceFunc) WatchID {
	db := h.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if h.released {
		return 0
	}
	db.nextWatch++
	id := db.nextWatch
	db.watches[id] = &watch{
		owner:   h,
		filter:  filter,
		added:   added,
		removed: removed,
		active:  true,
	}
	h.watches = append(h.watches, id)
	return id
}

// UnregisterWatch cancels a watch. No callback for id runs after it returns.
// Reports whether the watch existed and belonged to this handle.
func (h *DBHandle) UnregisterWatch(id WatchID) bool {
	db := h.db
	db.mu.Lock()
	defer db.mu.Unlock()
	w, ok := db.watches[id]
	if !ok || w.owner != h {
		return false
	}
	w.active = false
	delete(db.watches, id)
	for i, wid := range h.watches {
		if wid == id {
			h.watches = append(h.watches[:i], h.watches[i+1:]...)
			break
		}
	}
	return true
}

// ForEachService calls fn for every service matching filter, in handle
// order. A zero filter matches every service.
func (h *DBHandle) ForEachService(filter UUID, fn func(svc *Service)) {
	db := h.db
	db.mu.Lock()
	if h.released {
		db.mu.Unlock()
		return
	}
	services := make([]*Service, 0, len(db.services))
	for _, s := range db.services {
		if filter.IsZero() || s.UUID == filter {
			services = append(services, s)
		}
	}
	db.mu.Unlock()

	for _, s := range services {
		fn(s)
	}
}

// ForEachCharacteristic calls fn for every characteristic of svc, in
// handle order.
func (h *DBHandle) ForEachCharacteristic(svc *Service, fn func(c *Characteristic)) {
	if svc == nil {
		return
	}
	for _, c := range svc.characteristics {
		fn(c)
	}
}

// CharacteristicData returns the value handle and type of c. ok is false
// when c has no value handle or its service is no longer in the database.
func (h *DBHandle) CharacteristicData(c *Characteristic) (valueHandle uint16, typ UUID, ok bool) {
	if c == nil || c.ValueHandle == 0 {
		return 0, UUID{}, false
	}
	db := h.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if h.released || !db.contains(c.service) {
		return 0, UUID{}, false
	}
	return c.ValueHandle, c.UUID, true
}

// Release drops the reference and every watch registered through it.
// Subsequent calls are no-ops.
func (h *DBHandle) Release() {
	db := h.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	for _, id := range h.watches {
		if w, ok := db.watches[id]; ok {
			w.active = false
			delete(db.watches, id)
		}
	}
	h.watches = nil
	db.refs--
}

// Released reports whether Release has been called.
func (h *DBHandle) Released() bool {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	return h.released
}
