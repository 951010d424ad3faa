package gap

import "github.com/nerrad567/gray-logic-ble/internal/gatt"

// readOp describes how a completed read turns into an identity update.
type readOp[T any] struct {
	field  string
	decode func(value []byte) (T, error)
	apply  func(r *Registry, dev Device, v T)
}

var deviceNameOp = readOp[string]{
	field: "name",
	decode: func(value []byte) (string, error) {
		return DecodeName(value), nil
	},
	apply: func(r *Registry, dev Device, name string) {
		r.namesApplied.Add(1)
		r.logger.Debug("device name read", "device_id", dev.ID, "name", name)
		r.store.SetDisplayName(dev, name)
	},
}

var appearanceOp = readOp[uint16]{
	field:  "appearance",
	decode: DecodeAppearance,
	apply: func(r *Registry, dev Device, appearance uint16) {
		r.appearanceApplied.Add(1)
		r.logger.Debug("appearance read", "device_id", dev.ID, "appearance", appearance)
		r.store.SetAppearance(dev, appearance)
	},
}

// readDeviceName issues a long read; names may exceed one ATT PDU.
func (r *Registry) readDeviceName(s *Session, ref sessionRef, valueHandle uint16) {
	queued := s.client.ReadLongValue(valueHandle, 0, completion(r, ref, deviceNameOp))
	r.issued(s, deviceNameOp.field, queued)
}

func (r *Registry) readAppearance(s *Session, ref sessionRef, valueHandle uint16) {
	queued := s.client.ReadValue(valueHandle, completion(r, ref, appearanceOp))
	r.issued(s, appearanceOp.field, queued)
}

func (r *Registry) issued(s *Session, field string, queued bool) {
	if queued {
		r.readsIssued.Add(1)
		return
	}
	r.readsFailed.Add(1)
	r.logger.Warn("failed to send read request",
		"device_id", s.device.ID,
		"field", field,
		"error", &ReadError{Field: field},
	)
}

// completion builds the continuation for one read. It holds only a weak
// reference to the session and drops the result if that generation is gone.
func completion[T any](r *Registry, ref sessionRef, op readOp[T]) gatt.ReadFunc {
	return func(success bool, ecode gatt.ATTError, value []byte) {
		s, ok := r.resolve(ref)
		if !ok {
			return
		}

		if !success {
			r.readsFailed.Add(1)
			r.logger.Warn("identity read failed",
				"device_id", s.device.ID,
				"field", op.field,
				"att_error", ecode.String(),
				"error", &ReadError{Field: op.field, Code: ecode},
			)
			return
		}

		if len(value) == 0 {
			return
		}

		v, err := op.decode(value)
		if err != nil {
			r.decodeErrors.Add(1)
			r.logger.Warn("malformed identity value",
				"device_id", s.device.ID,
				"field", op.field,
				"length", len(value),
				"error", err,
			)
			return
		}
		op.apply(r, s.device, v)
	}
}
