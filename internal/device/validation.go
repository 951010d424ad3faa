package device

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	// MaxNameLength matches the longest name a GAP Device Name can carry.
	MaxNameLength = 248

	maxSlugLength = 50
	slugPattern   = `^[a-z0-9]+(?:-[a-z0-9]+)*$`

	maxTags      = 32
	maxTagLength = 64

	maxManufacturerLength = 128
)

var (
	slugRegex    = regexp.MustCompile(slugPattern)
	addressRegex = regexp.MustCompile(`^[0-9A-F]{2}(?::[0-9A-F]{2}){5}$`)
)

var (
	validAddressTypes map[AddressType]struct{}
	validHealthStatus map[HealthStatus]struct{}
)

func init() {
	validAddressTypes = make(map[AddressType]struct{}, len(AllAddressTypes()))
	for _, t := range AllAddressTypes() {
		validAddressTypes[t] = struct{}{}
	}

	validHealthStatus = make(map[HealthStatus]struct{}, len(AllHealthStatuses()))
	for _, s := range AllHealthStatuses() {
		validHealthStatus[s] = struct{}{}
	}
}

// ValidateDevice performs validation on a device.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}

	// Empty slug will be generated.
	if d.Slug != "" {
		if err := ValidateSlug(d.Slug); err != nil {
			return err
		}
	}

	if _, err := NormaliseAddress(d.Address); err != nil {
		return err
	}

	if err := ValidateAddressType(d.AddressType); err != nil {
		return err
	}

	if d.HealthStatus != "" {
		if err := ValidateHealthStatus(d.HealthStatus); err != nil {
			return err
		}
	}

	if d.Manufacturer != nil && len(*d.Manufacturer) > maxManufacturerLength {
		return fmt.Errorf("%w: manufacturer exceeds %d characters", ErrInvalidDevice, maxManufacturerLength)
	}

	return ValidateTags(d.Tags)
}

// ValidateName checks if a device name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidName, MaxNameLength)
	}
	return nil
}

// ValidateSlug checks if a slug format is valid.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: slug cannot be empty", ErrInvalidSlug)
	}
	if len(slug) > maxSlugLength {
		return fmt.Errorf("%w: slug exceeds %d characters", ErrInvalidSlug, maxSlugLength)
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("%w: slug must be lowercase alphanumeric with hyphens", ErrInvalidSlug)
	}
	return nil
}

// ValidateAddressType checks if an address type is valid.
func ValidateAddressType(t AddressType) error {
	if _, ok := validAddressTypes[t]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidAddressType, t)
}

// ValidateHealthStatus checks if a health status is valid.
func ValidateHealthStatus(status HealthStatus) error {
	if _, ok := validHealthStatus[status]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidHealthStatus, status)
}

// ValidateTags checks tag count and length.
func ValidateTags(tags []string) error {
	if len(tags) > maxTags {
		return fmt.Errorf("%w: too many tags (max %d)", ErrInvalidTag, maxTags)
	}
	for _, tag := range tags {
		if len(tag) > maxTagLength {
			return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidTag, tag, maxTagLength)
		}
	}
	return nil
}

// NormaliseAddress converts a BLE address to upper-case colon form.
// Accepts colon, hyphen or no separators: "c0:98:e5:00:12:34",
// "C0-98-E5-00-12-34", "c098e5001234".
func NormaliseAddress(addr string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(addr))
	s = strings.ReplaceAll(s, "-", ":")

	if len(s) == 12 && !strings.Contains(s, ":") {
		var b strings.Builder
		for i := 0; i < 12; i += 2 {
			if i > 0 {
				b.WriteByte(':')
			}
			b.WriteString(s[i : i+2])
		}
		s = b.String()
	}

	if !addressRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return s, nil
}

// GenerateSlug creates a URL-safe slug from a name.
func GenerateSlug(name string) string {
	slug := strings.ToLower(name)

	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")
	slug = strings.ReplaceAll(slug, ":", "-")

	var result strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	slug = result.String()

	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
		slug = strings.TrimRight(slug, "-")
	}

	return slug
}

// slugFor returns a slug for name, falling back to one derived from the
// address when the name has no usable characters.
func slugFor(name, address string) string {
	if slug := GenerateSlug(name); slug != "" {
		return slug
	}
	return "ble-" + strings.ToLower(strings.ReplaceAll(address, ":", ""))
}

// GenerateID creates a new UUID for a device.
func GenerateID() string {
	return uuid.New().String()
}

func normaliseTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// normaliseTags lower-cases, trims, deduplicates and sorts tags.
func normaliseTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	var normalised []string
	for _, tag := range tags {
		n := normaliseTag(tag)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		normalised = append(normalised, n)
	}

	sort.Strings(normalised)
	return normalised
}
