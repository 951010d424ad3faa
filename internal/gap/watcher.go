package gap

import "github.com/nerrad567/gray-logic-ble/internal/gatt"

// serviceAdded handles a watch notification. Services added while the
// client is still discovering are picked up by the bind-time scan instead.
func (r *Registry) serviceAdded(ref sessionRef, svc *gatt.Service) {
	s, ok := r.resolve(ref)
	if !ok {
		return
	}
	if !s.client.Ready() {
		r.logger.Debug("service added before client ready", "device_id", s.device.ID, "handle", svc.Handle)
		return
	}
	r.bindService(s, ref, svc)
}

func (r *Registry) serviceRemoved(ref sessionRef, svc *gatt.Service) {
	s, ok := r.resolve(ref)
	if !ok || s.service != svc {
		return
	}
	s.service = nil
	r.logger.Debug("identity service removed", "device_id", s.device.ID, "handle", svc.Handle)
}

// scanServices binds a GAP service already present in the database.
func (r *Registry) scanServices(ref sessionRef) {
	s, ok := r.resolve(ref)
	if !ok {
		return
	}
	s.db.ForEachService(gatt.GAPServiceUUID, func(svc *gatt.Service) {
		if s.gen != ref.gen {
			return
		}
		r.bindService(s, ref, svc)
	})
}

// bindService applies the first-bound-wins policy.
func (r *Registry) bindService(s *Session, ref sessionRef, svc *gatt.Service) {
	if svc.UUID != gatt.GAPServiceUUID {
		return
	}
	if s.service != nil {
		if s.service != svc {
			r.duplicateBindings.Add(1)
			r.logger.Error("duplicate identity service",
				"device_id", s.device.ID,
				"bound_handle", s.service.Handle,
				"handle", svc.Handle,
				"error", ErrDuplicateServiceBinding,
			)
		}
		return
	}

	s.service = svc
	r.logger.Debug("identity service bound", "device_id", s.device.ID, "handle", svc.Handle)
	r.classify(s, ref)
}
