package device

// Appearance categories (Bluetooth Assigned Numbers, section 2.6).
// The category is the upper 10 bits of the 16-bit appearance value.
const (
	AppearanceUnknown          uint16 = 0
	AppearancePhone            uint16 = 1
	AppearanceComputer         uint16 = 2
	AppearanceWatch            uint16 = 3
	AppearanceClock            uint16 = 4
	AppearanceDisplay          uint16 = 5
	AppearanceRemoteControl    uint16 = 6
	AppearanceEyeGlasses       uint16 = 7
	AppearanceTag              uint16 = 8
	AppearanceKeyring          uint16 = 9
	AppearanceMediaPlayer      uint16 = 10
	AppearanceBarcodeScanner   uint16 = 11
	AppearanceThermometer      uint16 = 12
	AppearanceHeartRate        uint16 = 13
	AppearanceBloodPressure    uint16 = 14
	AppearanceHID              uint16 = 15
	AppearanceGlucoseMeter     uint16 = 16
	AppearanceRunningWalking   uint16 = 17
	AppearanceCycling          uint16 = 18
	AppearancePulseOximeter    uint16 = 49
	AppearanceWeightScale      uint16 = 50
	AppearanceOutdoorsActivity uint16 = 81
)

var categoryIcons = map[uint16]string{
	AppearancePhone:            "phone",
	AppearanceComputer:         "computer",
	AppearanceWatch:            "watch",
	AppearanceClock:            "clock",
	AppearanceDisplay:          "video-display",
	AppearanceRemoteControl:    "remote-control",
	AppearanceEyeGlasses:       "eye-glasses",
	AppearanceTag:              "tag",
	AppearanceKeyring:          "keyring",
	AppearanceMediaPlayer:      "multimedia-player",
	AppearanceBarcodeScanner:   "scanner",
	AppearanceThermometer:      "thermometer",
	AppearanceHeartRate:        "heart-rate",
	AppearanceBloodPressure:    "blood-pressure",
	AppearanceHID:              "input",
	AppearanceGlucoseMeter:     "glucose",
	AppearanceRunningWalking:   "running-walking-sensor",
	AppearanceCycling:          "cycling",
	AppearancePulseOximeter:    "pulse-oximeter",
	AppearanceWeightScale:      "weight-scale",
	AppearanceOutdoorsActivity: "outdoor-sports",
}

// HID sub-categories (lower 6 bits).
var hidIcons = map[uint16]string{
	0x01: "input-keyboard",
	0x02: "input-mouse",
	0x03: "input-gaming",
	0x04: "input-gaming",
	0x05: "input-tablet",
	0x06: "card-reader",
	0x07: "digital-pen",
	0x08: "scanner",
}

// AppearanceCategory returns the category of an appearance value.
func AppearanceCategory(code uint16) uint16 {
	return code >> 6
}

// AppearanceSubcategory returns the sub-category of an appearance value.
func AppearanceSubcategory(code uint16) uint16 {
	return code & 0x3F
}

// AppearanceIcon maps an appearance value to an icon name, or "" when the
// category is unknown.
func AppearanceIcon(code uint16) string {
	category := AppearanceCategory(code)
	if category == AppearanceHID {
		if icon, ok := hidIcons[AppearanceSubcategory(code)]; ok {
			return icon
		}
	}
	return categoryIcons[category]
}
