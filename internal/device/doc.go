// Package device provides the BLE device registry for the Gray Logic BLE
// bridge.
//
// The registry is the catalogue of every Bluetooth Low Energy peripheral a
// proxy node has connected to. It persists each device's address and the
// identity learned from its Generic Access service (display name and
// appearance), together with link health.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                          Device Registry                          │
//	│                                                                   │
//	│  ┌──────────────────┐    ┌──────────────────┐   ┌──────────────┐  │
//	│  │     Registry     │    │    Repository    │   │  Validation  │  │
//	│  │   (registry.go)  │───▶│  (repository.go) │   │(validation.go│  │
//	│  │                  │    │                  │   │ appearance.go│  │
//	│  │ • CRUD ops       │    │ • SQLite queries │   │ • Addresses  │  │
//	│  │ • In-memory cache│    │ • JSON tags      │   │ • Slugs      │  │
//	│  │ • Identity sets  │    │ • Partial updates│   │ • Icons      │  │
//	│  └──────────────────┘    └──────────────────┘   └──────────────┘  │
//	│           │                       │                               │
//	└───────────│───────────────────────│───────────────────────────────┘
//	            │                       │
//	            ▼                       ▼
//	┌──────────────────────┐   ┌──────────────────────┐
//	│  identity.Store      │   │   SQLite Database    │
//	│  bleproxy.Bridge     │   │  (ble_devices table) │
//	└──────────────────────┘   └──────────────────────┘
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	dev, created, err := registry.CreateDeviceIfNotExists(ctx, &device.Device{
//	    Address:     "C0:98:E5:00:12:34",
//	    AddressType: device.AddressTypeRandom,
//	})
//
//	// Identity learned from the GAP service
//	registry.SetDisplayName(ctx, dev.ID, "Kitchen Speaker")
//	registry.SetAppearance(ctx, dev.ID, 0x0841)
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex. The Repository implementation must also be thread-safe.
package device
