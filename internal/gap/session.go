package gap

import "github.com/nerrad567/gray-logic-ble/internal/gatt"

// Session is the binding between one tracked device and its current
// attribute database and client.
//
// db, watchID and client are either all set or all zero. service is only
// set while the session is bound to a database.
type Session struct {
	device Device
	gen    uint64

	db      *gatt.DBHandle
	watchID gatt.WatchID
	client  *gatt.ClientHandle

	service *gatt.Service
}

// Device returns the tracked device.
func (s *Session) Device() Device {
	return s.device
}

// Bound reports whether the session holds database and client handles.
func (s *Session) Bound() bool {
	return s.db != nil
}

// Service returns the currently bound GAP service, or nil.
func (s *Session) Service() *gatt.Service {
	return s.service
}

// sessionRef is a weak reference to a session generation. It never keeps a
// session alive; resolve fails once the session is closed or rebound.
type sessionRef struct {
	id  string
	gen uint64
}
