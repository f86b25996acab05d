package account

// Metadata is an ordered string-to-string map of human-readable account
// fields. Order is insertion order; Set on an existing key updates in place.
type Metadata struct {
	keys   []string
	values map[string]string
}

// NewMetadata builds metadata from alternating key/value pairs.
func NewMetadata(pairs ...string) *Metadata {
	m := &Metadata{values: make(map[string]string)}
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return m
}

// Set inserts or updates a field.
func (m *Metadata) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key.
func (m *Metadata) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the field names in insertion order.
func (m *Metadata) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of fields.
func (m *Metadata) Len() int { return len(m.keys) }

// clone returns an independent copy.
func (m *Metadata) clone() *Metadata {
	c := NewMetadata()
	for _, k := range m.keys {
		c.Set(k, m.values[k])
	}
	return c
}
