package gatt

import (
	"errors"
	"fmt"
)

// Domain errors for the gatt package.
var (
	// ErrInvalidUUID is returned when a UUID string cannot be parsed.
	ErrInvalidUUID = errors.New("gatt: invalid UUID")

	// ErrInvalidService is returned when a service definition is malformed
	// or overlaps an existing service.
	ErrInvalidService = errors.New("gatt: invalid service definition")

	// ErrUnknownRequest is returned by Client.Deliver for a request ID that
	// is not pending (already completed, cancelled, or never issued).
	ErrUnknownRequest = errors.New("gatt: unknown request")

	// ErrClientClosed is returned when delivering to a closed client.
	ErrClientClosed = errors.New("gatt: client closed")
)

// ATTError is an Attribute Protocol error code.
type ATTError uint8

// ATT error codes (Core Specification Vol 3, Part F, 3.4.1.1).
const (
	ErrCodeNone                          ATTError = 0x00
	ErrCodeInvalidHandle                 ATTError = 0x01
	ErrCodeReadNotPermitted              ATTError = 0x02
	ErrCodeWriteNotPermitted             ATTError = 0x03
	ErrCodeInvalidPDU                    ATTError = 0x04
	ErrCodeInsufficientAuthentication    ATTError = 0x05
	ErrCodeRequestNotSupported           ATTError = 0x06
	ErrCodeInvalidOffset                 ATTError = 0x07
	ErrCodeInsufficientAuthorization     ATTError = 0x08
	ErrCodePrepareQueueFull              ATTError = 0x09
	ErrCodeAttributeNotFound             ATTError = 0x0A
	ErrCodeAttributeNotLong              ATTError = 0x0B
	ErrCodeInsufficientEncryptionKeySize ATTError = 0x0C
	ErrCodeInvalidAttributeValueLength   ATTError = 0x0D
	ErrCodeUnlikely                      ATTError = 0x0E
	ErrCodeInsufficientEncryption        ATTError = 0x0F
	ErrCodeUnsupportedGroupType          ATTError = 0x10
	ErrCodeInsufficientResources         ATTError = 0x11
)

var attErrorNames = map[ATTError]string{
	ErrCodeNone:                          "success",
	ErrCodeInvalidHandle:                 "invalid handle",
	ErrCodeReadNotPermitted:              "read not permitted",
	ErrCodeWriteNotPermitted:             "write not permitted",
	ErrCodeInvalidPDU:                    "invalid PDU",
	ErrCodeInsufficientAuthentication:    "insufficient authentication",
	ErrCodeRequestNotSupported:           "request not supported",
	ErrCodeInvalidOffset:                 "invalid offset",
	ErrCodeInsufficientAuthorization:     "insufficient authorization",
	ErrCodePrepareQueueFull:              "prepare queue full",
	ErrCodeAttributeNotFound:             "attribute not found",
	ErrCodeAttributeNotLong:              "attribute not long",
	ErrCodeInsufficientEncryptionKeySize: "insufficient encryption key size",
	ErrCodeInvalidAttributeValueLength:   "invalid attribute value length",
	ErrCodeUnlikely:                      "unlikely error",
	ErrCodeInsufficientEncryption:        "insufficient encryption",
	ErrCodeUnsupportedGroupType:          "unsupported group type",
	ErrCodeInsufficientResources:         "insufficient resources",
}

// String returns a human-readable name for the error code.
func (e ATTError) String() string {
	if name, ok := attErrorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("unknown ATT error 0x%02x", uint8(e))
}

// Error implements error so codes can be wrapped and logged directly.
func (e ATTError) Error() string {
	return fmt.Sprintf("att: %s (0x%02x)", e.String(), uint8(e))
}
