package gap

import "github.com/nerrad567/gray-logic-ble/internal/gatt"

type readFn func(r *Registry, s *Session, ref sessionRef, valueHandle uint16)

// characteristicHandlers maps known GAP characteristics to their readers.
// Anything else (privacy flags, connection parameters, ...) is skipped.
var characteristicHandlers = map[gatt.UUID]readFn{
	gatt.DeviceNameUUID: (*Registry).readDeviceName,
	gatt.AppearanceUUID: (*Registry).readAppearance,
}

// classify triggers a read for every known characteristic of the bound
// service. It does not wait for completions.
func (r *Registry) classify(s *Session, ref sessionRef) {
	s.db.ForEachCharacteristic(s.service, func(c *gatt.Characteristic) {
		if s.gen != ref.gen {
			return
		}

		valueHandle, typ, ok := s.db.CharacteristicData(c)
		if !ok {
			r.logger.Error("failed to obtain characteristic data", "device_id", s.device.ID, "handle", c.Handle)
			return
		}

		read, known := characteristicHandlers[typ]
		if !known {
			r.logger.Debug("unsupported characteristic", "device_id", s.device.ID, "uuid", typ.String())
			return
		}
		read(r, s, ref, valueHandle)
	})
}
