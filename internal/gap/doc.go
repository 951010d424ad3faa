// Package gap keeps a device's identity (display name and appearance) in
// sync with the Generic Access service of its remote attribute database.
//
// A hosting entity opens one Session per tracked device and rebinds it each
// time a fresh database/client pair becomes available. On rebind the session
// registers a watch for the GAP service (0x1800), scans the database for an
// instance that is already present, and for the first instance it finds
// issues asynchronous reads of the Device Name (0x2A00) and Appearance
// (0x2A01) characteristics. Decoded values are handed to an IdentityStore.
//
// # Lifecycle
//
//	Unbound ──Rebind──▶ Watching ──service-added──▶ Bound
//	   ▲                   ▲  ◀──service-removed──    │
//	   └───Close/Rebind────┴──────────────────────────┘
//
// Only one GAP service instance is honoured per session. A second instance
// seen while one is bound is logged as ErrDuplicateServiceBinding and
// ignored.
//
// # Threading
//
// Registry is not safe for concurrent use. Every call, including the watch
// and read callbacks it registers, must run on one event loop (see
// gatt.Loop). Read completions hold only a weak reference to their session:
// a completion that arrives after Close or Rebind finds a different
// generation and does nothing.
//
// # Errors
//
// Only Open, Close and Rebind return errors. Read failures, malformed values
// and duplicate bindings are logged and absorbed.
package gap
