// Package gatt mirrors a remote device's GATT attribute database locally and
// provides an attribute client that reads values through a pluggable transport.
//
// A BLE proxy node performs the actual radio work. The bridge feeds discovery
// results into a DB and forwards read requests issued through a Client to the
// proxy; responses come back through Client.Deliver.
//
// # Ownership
//
// DB and Client are shared by every consumer of a connected device. Each
// consumer holds its own counted reference obtained with Acquire and gives it
// back with Release exactly once:
//
//	h := db.Acquire()
//	id := h.RegisterWatch(onAdded, onRemoved)
//	...
//	h.UnregisterWatch(id)
//	h.Release()
//
// Releasing a ClientHandle cancels the reads issued through it: their ReadFunc
// is never invoked, even if the proxy answers afterwards.
//
// # Threading
//
// Watch notifications and read completions run on whatever goroutine mutates
// the DB or delivers the response. The bridge funnels all of those through a
// single Loop so consumers see strictly sequential callbacks.
package gatt
