package gatt

// Properties is the characteristic properties bit field.
type Properties uint8

// Characteristic property bits.
const (
	PropBroadcast           Properties = 0x01
	PropRead                Properties = 0x02
	PropWriteWithoutResp    Properties = 0x04
	PropWrite               Properties = 0x08
	PropNotify              Properties = 0x10
	PropIndicate            Properties = 0x20
	PropAuthenticatedWrites Properties = 0x40
	PropExtendedProps       Properties = 0x80
)

// Service is a service attribute group in the local mirror of a remote
// database. Pointer identity is stable for as long as the service stays in
// the DB; a service removed and re-added yields a new *Service.
type Service struct {
	Handle    uint16
	EndHandle uint16
	UUID      UUID
	Primary   bool

	characteristics []*Characteristic
}

// Characteristic is a characteristic declaration within a Service.
type Characteristic struct {
	Handle      uint16
	ValueHandle uint16
	Properties  Properties
	UUID        UUID

	service *Service
}

// Service returns the service that declares c.
func (c *Characteristic) Service() *Service {
	return c.service
}

// ServiceDefinition describes a discovered service as reported by a proxy.
type ServiceDefinition struct {
	Handle          uint16                     `json:"handle"`
	EndHandle       uint16                     `json:"end_handle"`
	UUID            UUID                       `json:"uuid"`
	Primary         bool                       `json:"primary"`
	Characteristics []CharacteristicDefinition `json:"characteristics,omitempty"`
}

// CharacteristicDefinition describes a discovered characteristic.
type CharacteristicDefinition struct {
	Handle      uint16     `json:"handle"`
	ValueHandle uint16     `json:"value_handle"`
	Properties  Properties `json:"properties"`
	UUID        UUID       `json:"uuid"`
}

// validate checks handle ordering within the definition.
func (d ServiceDefinition) validate() bool {
	if d.Handle == 0 || d.EndHandle < d.Handle || d.UUID.IsZero() {
		return false
	}
	prev := d.Handle
	for _, c := range d.Characteristics {
		if c.Handle <= prev || c.Handle > d.EndHandle || c.UUID.IsZero() {
			return false
		}
		if c.ValueHandle != 0 && (c.ValueHandle <= c.Handle || c.ValueHandle > d.EndHandle) {
			return false
		}
		prev = c.Handle
	}
	return true
}

func newService(d ServiceDefinition) *Service {
	svc := &Service{
		Handle:    d.Handle,
		EndHandle: d.EndHandle,
		UUID:      d.UUID,
		Primary:   d.Primary,
	}
	svc.characteristics = make([]*Characteristic, 0, len(d.Characteristics))
	for _, cd := range d.Characteristics {
		svc.characteristics = append(svc.characteristics, &Characteristic{
			Handle:      cd.Handle,
			ValueHandle: cd.ValueHandle,
			Properties:  cd.Properties,
			UUID:        cd.UUID,
			service:     svc,
		})
	}
	return svc
}

func (s *Service) overlaps(other *Service) bool {
	return s.Handle <= other.EndHandle && other.Handle <= s.EndHandle
}
