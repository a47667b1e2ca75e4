package model

// Pair is one key/value entry of a serialized form.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FormState is the flat field-name to value record of one form instance.
// Keys keep the order given at construction.
type FormState struct {
	keys   []string
	values map[string]string
}

// NewFormState returns a state with every key set to the empty string.
func NewFormState(keys []string) FormState {
	s := FormState{
		keys:   make([]string, len(keys)),
		values: make(map[string]string, len(keys)),
	}
	copy(s.keys, keys)
	for _, k := range keys {
		s.values[k] = ""
	}
	return s
}

// Has reports whether key belongs to the state.
func (s FormState) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Get returns the value for key, or "" when key is unknown.
func (s FormState) Get(key string) string {
	return s.values[key]
}

// Set replaces the value of an existing key. Unknown keys are ignored and
// reported with false.
func (s FormState) Set(key, value string) bool {
	if _, ok := s.values[key]; !ok {
		return false
	}
	s.values[key] = value
	return true
}

// Keys returns the keys in order.
func (s FormState) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Reset sets every value back to the empty string.
func (s FormState) Reset() {
	for k := range s.values {
		s.values[k] = ""
	}
}

// Clone returns an independent copy.
func (s FormState) Clone() FormState {
	c := NewFormState(s.keys)
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}

// Pairs returns the entries in key order.
func (s FormState) Pairs() []Pair {
	out := make([]Pair, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, Pair{Key: k, Value: s.values[k]})
	}
	return out
}

// Map returns a copy of the values keyed by field name.
func (s FormState) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether every value is the empty string.
func (s FormState) IsEmpty() bool {
	for _, v := range s.values {
		if v != "" {
			return false
		}
	}
	return true
}

// Equal reports whether both states hold the same keys in the same order
// with the same values.
func (s FormState) Equal(other FormState) bool {
	if len(s.keys) != len(other.keys) {
		return false
	}
	for i, k := range s.keys {
		if other.keys[i] != k || other.values[k] != s.values[k] {
			return false
		}
	}
	return true
}
