package device

import "testing"

func TestAppearanceIcon(t *testing.T) {
	tests := []struct {
		code uint16
		want string
	}{
		{0x0000, ""},
		{0x0040, "phone"},
		{0x0080, "computer"},
		{0x00C1, "watch"},
		{0x0140, "video-display"},
		{0x0280, "multimedia-player"},
		{0x03C0, "input"},
		{0x03C1, "input-keyboard"},
		{0x03C2, "input-mouse"},
		{0x03C3, "input-gaming"},
		{0x03C4, "input-gaming"},
		{0x03C5, "input-tablet"},
		{0x03C8, "scanner"},
		{0x03CF, "input"},
		{0x0C40, "pulse-oximeter"},
		{0x0C80, "weight-scale"},
		{0x1440, "outdoor-sports"},
		{0xFFFF, ""},
	}

	for _, tt := range tests {
		if got := AppearanceIcon(tt.code); got != tt.want {
			t.Errorf("AppearanceIcon(%#04x) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestAppearanceCategory(t *testing.T) {
	if got := AppearanceCategory(0x03C1); got != AppearanceHID {
		t.Errorf("AppearanceCategory(0x03C1) = %d, want %d", got, AppearanceHID)
	}
	if got := AppearanceSubcategory(0x03C1); got != 1 {
		t.Errorf("AppearanceSubcategory(0x03C1) = %d, want 1", got)
	}
}
