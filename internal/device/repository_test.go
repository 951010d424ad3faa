package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the ble_devices table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE ble_devices (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL,
			address TEXT NOT NULL UNIQUE,
			address_type TEXT NOT NULL DEFAULT 'public'
				CHECK (address_type IN ('public', 'random')),
			appearance INTEGER,
			icon TEXT,
			manufacturer TEXT,
			tags TEXT NOT NULL DEFAULT '[]',
			health_status TEXT NOT NULL DEFAULT 'unknown'
				CHECK (health_status IN ('online', 'offline', 'degraded', 'unknown')),
			health_last_seen TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_ble_devices_slug ON ble_devices(slug);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// testDevice creates a device for testing.
func testDevice(id, address, name string) *Device {
	return &Device{
		ID:           id,
		Name:         name,
		Slug:         GenerateSlug(name),
		Address:      address,
		AddressType:  AddressTypePublic,
		HealthStatus: HealthStatusUnknown,
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	appearance := uint16(0x0280)
	manufacturer := "Acme Audio"
	d := testDevice("dev-1", "C0:98:E5:00:12:34", "Speaker")
	d.Appearance = &appearance
	d.Icon = AppearanceIcon(appearance)
	d.Manufacturer = &manufacturer
	d.Tags = []string{"audio", "kitchen"}

	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.CreatedAt.IsZero() || d.UpdatedAt.IsZero() {
		t.Error("Create() should set timestamps")
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Speaker" || got.Address != d.Address {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.Appearance == nil || *got.Appearance != appearance {
		t.Errorf("Appearance = %v, want %#04x", got.Appearance, appearance)
	}
	if got.Icon != "multimedia-player" {
		t.Errorf("Icon = %q, want multimedia-player", got.Icon)
	}
	if got.Manufacturer == nil || *got.Manufacturer != manufacturer {
		t.Errorf("Manufacturer = %v", got.Manufacturer)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "audio" {
		t.Errorf("Tags = %v", got.Tags)
	}

	byAddr, err := repo.GetByAddress(ctx, "C0:98:E5:00:12:34")
	if err != nil {
		t.Fatalf("GetByAddress() error = %v", err)
	}
	if byAddr.ID != "dev-1" {
		t.Errorf("GetByAddress() ID = %q, want dev-1", byAddr.ID)
	}
}

func TestSQLiteRepository_CreateDefaults(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("dev-1", "C0:98:E5:00:12:34", "C0:98:E5:00:12:34")
	d.HealthStatus = ""

	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.HealthStatus != HealthStatusUnknown {
		t.Errorf("HealthStatus = %q, want unknown", got.HealthStatus)
	}
	if got.Appearance != nil || got.Icon != "" || got.Manufacturer != nil {
		t.Errorf("optional fields should be empty: %+v", got)
	}
	if got.Tags != nil {
		t.Errorf("Tags = %v, want nil", got.Tags)
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("dev-1", "C0:98:E5:00:12:34", "One")); err != nil {
		t.Fatal(err)
	}

	t.Run("same id", func(t *testing.T) {
		err := repo.Create(ctx, testDevice("dev-1", "C0:98:E5:00:12:35", "Two"))
		if !errors.Is(err, ErrDeviceExists) {
			t.Errorf("Create() error = %v, want ErrDeviceExists", err)
		}
	})

	t.Run("same address", func(t *testing.T) {
		err := repo.Create(ctx, testDevice("dev-2", "C0:98:E5:00:12:34", "Two"))
		if !errors.Is(err, ErrDeviceExists) {
			t.Errorf("Create() error = %v, want ErrDeviceExists", err)
		}
	})
}

func TestSQLiteRepository_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
	if _, err := repo.GetByAddress(ctx, "00:00:00:00:00:00"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByAddress() error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.Update(ctx, testDevice("missing", "00:00:00:00:00:00", "x")); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update() error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Delete() error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.UpdateName(ctx, "missing", "x", "x"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateName() error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.UpdateAppearance(ctx, "missing", 64, "phone"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateAppearance() error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.UpdateHealth(ctx, "missing", HealthStatusOnline, time.Now()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateHealth() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, d := range []*Device{
		testDevice("dev-1", "C0:98:E5:00:00:01", "Zebra"),
		testDevice("dev-2", "C0:98:E5:00:00:02", "Alpha"),
	} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("List() returned %d devices, want 2", len(devices))
	}
	if devices[0].Name != "Alpha" {
		t.Errorf("List() first = %q, want Alpha (ordered by name)", devices[0].Name)
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("dev-1", "C0:98:E5:00:12:34", "Speaker")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatal(err)
	}

	d.Name = "Kitchen Speaker"
	d.Slug = "kitchen-speaker"
	d.AddressType = AddressTypeRandom
	d.Tags = []string{"audio"}
	if err := repo.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Kitchen Speaker" || got.Slug != "kitchen-speaker" || got.AddressType != AddressTypeRandom {
		t.Errorf("Update() not persisted: %+v", got)
	}
	if len(got.Tags) != 1 {
		t.Errorf("Tags = %v, want [audio]", got.Tags)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("dev-1", "C0:98:E5:00:12:34", "Speaker")); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, "dev-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, "dev-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() after Delete() error = %v", err)
	}
}

func TestSQLiteRepository_IdentityUpdates(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("dev-1", "C0:98:E5:00:12:34", "C0:98:E5:00:12:34")); err != nil {
		t.Fatal(err)
	}

	if err := repo.UpdateName(ctx, "dev-1", "Speaker", "speaker"); err != nil {
		t.Fatalf("UpdateName() error = %v", err)
	}
	if err := repo.UpdateAppearance(ctx, "dev-1", 0x03C1, "input-keyboard"); err != nil {
		t.Fatalf("UpdateAppearance() error = %v", err)
	}

	seen := time.Now().UTC()
	if err := repo.UpdateHealth(ctx, "dev-1", HealthStatusOnline, seen); err != nil {
		t.Fatalf("UpdateHealth() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Speaker" || got.Slug != "speaker" {
		t.Errorf("name = %q slug = %q", got.Name, got.Slug)
	}
	if got.Appearance == nil || *got.Appearance != 0x03C1 || got.Icon != "input-keyboard" {
		t.Errorf("appearance = %v icon = %q", got.Appearance, got.Icon)
	}
	if got.HealthStatus != HealthStatusOnline {
		t.Errorf("HealthStatus = %q, want online", got.HealthStatus)
	}
	if got.HealthLastSeen == nil || got.HealthLastSeen.Sub(seen).Abs() > time.Second {
		t.Errorf("HealthLastSeen = %v, want ~%v", got.HealthLastSeen, seen)
	}
}

func TestIsUniqueConstraintError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("UNIQUE constraint failed: ble_devices.address"), true},
		{errors.New("disk I/O error"), false},
	}
	for _, tt := range tests {
		if got := isUniqueConstraintError(tt.err); got != tt.want {
			t.Errorf("isUniqueConstraintError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
