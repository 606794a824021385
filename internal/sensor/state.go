package sensor

// State is the published shape of one entity.
type State struct {
	EntityID    string         `json:"entity_id"`
	UniqueID    string         `json:"unique_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastUpdated string         `json:"last_updated,omitempty"`
	Device      DeviceInfo     `json:"device"`
}

// State renders the sensor. An unavailable sensor reports "unavailable", a
// sensor without a value reports "unknown".
func (s *Sensor) State() State {
	st := State{
		EntityID: s.EntityID(),
		UniqueID: s.UniqueID(),
		Device:   s.Device(),
	}

	attrs := map[string]any{
		"attribution": Attribution,
		"icon":        s.desc.icon,
	}
	if s.desc.stateClass != "" {
		attrs["state_class"] = s.desc.stateClass
	}

	snap, hasData := s.provider.Data()
	if s.Available() {
		st.State = StateUnknown
		if v, ok := s.Value(); ok {
			st.State = v
		}
		for k, v := range s.Attributes() {
			attrs[k] = v
		}
	} else {
		st.State = StateUnavailable
	}
	if hasData && !snap.FetchedAt.IsZero() {
		st.LastUpdated = isoTime(snap.FetchedAt)
	}
	st.Attributes = attrs
	return st
}

// States renders every sensor in order.
func States(sensors []*Sensor) []State {
	out := make([]State, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, s.State())
	}
	return out
}
