package device

import (
	"errors"
	"strings"
	"testing"
)

func TestNormaliseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"C0:98:E5:00:12:34", "C0:98:E5:00:12:34", false},
		{"c0:98:e5:00:12:34", "C0:98:E5:00:12:34", false},
		{"C0-98-E5-00-12-34", "C0:98:E5:00:12:34", false},
		{"c098e5001234", "C0:98:E5:00:12:34", false},
		{"  c0:98:e5:00:12:34 ", "C0:98:E5:00:12:34", false},
		{"", "", true},
		{"C0:98:E5:00:12", "", true},
		{"G0:98:E5:00:12:34", "", true},
		{"c098e500123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormaliseAddress(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Errorf("NormaliseAddress(%q) error = %v, want ErrInvalidAddress", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormaliseAddress(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormaliseAddress(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Speaker", "speaker"},
		{"Kitchen Speaker", "kitchen-speaker"},
		{"C0:98:E5:00:12:34", "c0-98-e5-00-12-34"},
		{"my_device  2", "my-device-2"},
		{"  --Lamp--  ", "lamp"},
		{"Café", "caf"},
		{"日本語", ""},
		{strings.Repeat("a", 60), strings.Repeat("a", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateSlug(tt.name); got != tt.want {
				t.Errorf("GenerateSlug(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestSlugFor(t *testing.T) {
	if got := slugFor("Speaker", "C0:98:E5:00:12:34"); got != "speaker" {
		t.Errorf("slugFor() = %q, want speaker", got)
	}
	if got := slugFor("日本語", "C0:98:E5:00:12:34"); got != "ble-c098e5001234" {
		t.Errorf("slugFor() = %q, want ble-c098e5001234", got)
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("Speaker"); err != nil {
		t.Errorf("ValidateName(Speaker) error = %v", err)
	}
	if err := ValidateName(strings.Repeat("x", MaxNameLength)); err != nil {
		t.Errorf("ValidateName(max) error = %v", err)
	}
	for _, bad := range []string{"", "   ", strings.Repeat("x", MaxNameLength+1)} {
		if err := ValidateName(bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(len %d) error = %v, want ErrInvalidName", len(bad), err)
		}
	}
}

func TestValidateSlug(t *testing.T) {
	valid := []string{"speaker", "kitchen-speaker", "ble-c098e5001234"}
	for _, s := range valid {
		if err := ValidateSlug(s); err != nil {
			t.Errorf("ValidateSlug(%q) error = %v", s, err)
		}
	}
	invalid := []string{"", "Speaker", "-lamp", "lamp-", "a--b", strings.Repeat("a", 51)}
	for _, s := range invalid {
		if err := ValidateSlug(s); !errors.Is(err, ErrInvalidSlug) {
			t.Errorf("ValidateSlug(%q) error = %v, want ErrInvalidSlug", s, err)
		}
	}
}

func TestValidateTags(t *testing.T) {
	if err := ValidateTags([]string{"audio", "kitchen"}); err != nil {
		t.Errorf("ValidateTags() error = %v", err)
	}

	many := make([]string, maxTags+1)
	for i := range many {
		many[i] = "t"
	}
	if err := ValidateTags(many); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("ValidateTags(too many) error = %v, want ErrInvalidTag", err)
	}
	if err := ValidateTags([]string{strings.Repeat("t", maxTagLength+1)}); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("ValidateTags(too long) error = %v, want ErrInvalidTag", err)
	}
}

func TestNormaliseTags(t *testing.T) {
	got := normaliseTags([]string{" Kitchen", "audio", "kitchen", "", "AUDIO"})
	want := []string{"audio", "kitchen"}
	if len(got) != len(want) {
		t.Fatalf("normaliseTags() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("normaliseTags()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if normaliseTags(nil) != nil {
		t.Error("normaliseTags(nil) should be nil")
	}
}

func TestValidateDevice(t *testing.T) {
	manufacturer := strings.Repeat("m", maxManufacturerLength+1)

	tests := []struct {
		name    string
		device  *Device
		wantErr error
	}{
		{"nil", nil, ErrInvalidDevice},
		{"valid", testDevice("d", "C0:98:E5:00:12:34", "Speaker"), nil},
		{"empty name", &Device{Address: "C0:98:E5:00:12:34", AddressType: AddressTypePublic}, ErrInvalidName},
		{"bad slug", &Device{Name: "x", Slug: "X", Address: "C0:98:E5:00:12:34", AddressType: AddressTypePublic}, ErrInvalidSlug},
		{"bad address", &Device{Name: "x", Address: "nope", AddressType: AddressTypePublic}, ErrInvalidAddress},
		{"bad address type", &Device{Name: "x", Address: "C0:98:E5:00:12:34", AddressType: "static"}, ErrInvalidAddressType},
		{"bad health", &Device{Name: "x", Address: "C0:98:E5:00:12:34", AddressType: AddressTypeRandom, HealthStatus: "asleep"}, ErrInvalidHealthStatus},
		{"long manufacturer", &Device{Name: "x", Address: "C0:98:E5:00:12:34", AddressType: AddressTypePublic, Manufacturer: &manufacturer}, ErrInvalidDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDevice(tt.device)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDevice() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDevice() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == "" || a == b {
		t.Errorf("GenerateID() = %q, %q; want distinct non-empty IDs", a, b)
	}
}
