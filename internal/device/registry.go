package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo      Repository
	cache     map[string]*Device // Cached devices by ID
	byAddress map[string]string  // Address -> ID
	cacheMu   sync.RWMutex       // Protects cache and byAddress
	logger    Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:      repo,
		cache:     make(map[string]*Device),
		byAddress: make(map[string]string),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	r.byAddress = make(map[string]string, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
		r.byAddress[d.Address] = d.ID
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	// Might be a device created by another process since the last refresh.
	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.storeLocked(device)
	return device, nil
}

// GetDeviceByAddress retrieves a device by BLE address in any accepted form.
func (r *Registry) GetDeviceByAddress(ctx context.Context, address string) (*Device, error) {
	addr, err := NormaliseAddress(address)
	if err != nil {
		return nil, err
	}

	r.cacheMu.RLock()
	id, ok := r.byAddress[addr]
	var cached *Device
	if ok {
		cached = r.cache[id]
	}
	r.cacheMu.RUnlock()

	if cached != nil {
		return cached.DeepCopy(), nil
	}

	device, err := r.repo.GetByAddress(ctx, addr)
	if err != nil {
		return nil, err
	}

	r.storeLocked(device)
	return device, nil
}

// storeLocked caches a deep copy of d. Acquires the write lock.
func (r *Registry) storeLocked(d *Device) {
	r.cacheMu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.byAddress[d.Address] = d.ID
	r.cacheMu.Unlock()
}

// ListDevices retrieves all devices.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			devices = append(devices, *d.DeepCopy())
		}
		return devices, nil
	}

	return r.repo.List(ctx)
}

// CreateDevice creates a new device.
// It normalises the address, generates ID, name and slug if needed,
// validates the device and persists it.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	addr, err := NormaliseAddress(device.Address)
	if err != nil {
		return err
	}
	device.Address = addr

	if device.ID == "" {
		device.ID = GenerateID()
	}
	if device.Name == "" {
		device.Name = device.Address
	}
	if device.Slug == "" {
		device.Slug = slugFor(device.Name, device.Address)
	}
	if device.AddressType == "" {
		device.AddressType = AddressTypePublic
	}
	if device.HealthStatus == "" {
		device.HealthStatus = HealthStatusUnknown
	}
	if device.Appearance != nil && device.Icon == "" {
		device.Icon = AppearanceIcon(*device.Appearance)
	}
	device.Tags = normaliseTags(device.Tags)

	if err := ValidateDevice(device); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	r.storeLocked(device)

	r.logger.Info("device created", "id", device.ID, "address", device.Address, "name", device.Name)
	return nil
}

// CreateDeviceIfNotExists returns the device registered at device.Address,
// creating it from device when none exists. created reports which happened.
func (r *Registry) CreateDeviceIfNotExists(ctx context.Context, device *Device) (*Device, bool, error) {
	existing, err := r.GetDeviceByAddress(ctx, device.Address)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		return nil, false, err
	}

	if err := r.CreateDevice(ctx, device); err != nil {
		if errors.Is(err, ErrDeviceExists) {
			// Lost a race with another creator; use theirs.
			existing, getErr := r.GetDeviceByAddress(ctx, device.Address)
			if getErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return device.DeepCopy(), true, nil
}

// UpdateDevice updates an existing device.
// It validates the device and persists the changes.
func (r *Registry) UpdateDevice(ctx context.Context, device *Device) error {
	existing, err := r.GetDevice(ctx, device.ID)
	if err != nil {
		return err
	}

	addr, err := NormaliseAddress(device.Address)
	if err != nil {
		return err
	}
	device.Address = addr

	if device.Name != existing.Name && device.Slug == existing.Slug {
		device.Slug = slugFor(device.Name, device.Address)
	}
	device.Tags = normaliseTags(device.Tags)

	if err := ValidateDevice(device); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, device); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if existing.Address != device.Address {
		delete(r.byAddress, existing.Address)
	}
	r.cache[device.ID] = device.DeepCopy()
	r.byAddress[device.Address] = device.ID
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", device.ID, "name", device.Name)
	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		delete(r.byAddress, cached.Address)
	}
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetDisplayName records the name a device reports for itself.
// Leading and trailing whitespace is trimmed; the slug follows the name.
func (r *Registry) SetDisplayName(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return err
	}

	current, err := r.GetDevice(ctx, id)
	if err != nil {
		return err
	}
	if current.Name == name {
		return nil
	}

	slug := slugFor(name, current.Address)
	if err := r.repo.UpdateName(ctx, id, name, slug); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.Name = name
		updated.Slug = slug
		updated.UpdatedAt = time.Now().UTC()
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Info("device name updated", "id", id, "name", name)
	return nil
}

// SetAppearance records a device's GAP appearance and derives its icon.
func (r *Registry) SetAppearance(ctx context.Context, id string, appearance uint16) error {
	icon := AppearanceIcon(appearance)
	if err := r.repo.UpdateAppearance(ctx, id, appearance, icon); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.Appearance = &appearance
		updated.Icon = icon
		updated.UpdatedAt = time.Now().UTC()
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device appearance updated", "id", id, "appearance", appearance, "icon", icon)
	return nil
}

// SetDeviceHealth updates the health status of a device.
func (r *Registry) SetDeviceHealth(ctx context.Context, id string, status HealthStatus) error {
	if err := ValidateHealthStatus(status); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := r.repo.UpdateHealth(ctx, id, status, now); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.HealthStatus = status
		updated.HealthLastSeen = &now
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device health updated", "id", id, "status", status)
	return nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices   int
	Named          int
	WithAppearance int
	ByHealthStatus map[HealthStatus]int
	ByIcon         map[string]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices:   len(r.cache),
		ByHealthStatus: make(map[HealthStatus]int),
		ByIcon:         make(map[string]int),
	}

	for _, d := range r.cache {
		if d.HasName() {
			stats.Named++
		}
		if d.Appearance != nil {
			stats.WithAppearance++
		}
		if d.Icon != "" {
			stats.ByIcon[d.Icon]++
		}
		stats.ByHealthStatus[d.HealthStatus]++
	}

	return stats
}
