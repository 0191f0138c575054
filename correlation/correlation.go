package correlation

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Property is a single named value within a correlation.
type Property struct {
	Key   string
	Value any
}

// Correlation is a set of properties that identifies a process instance.
//
// The order of the properties is not significant.
type Correlation struct {
	properties []Property
}

// New returns a correlation containing the given properties.
//
// If the same key occurs more than once, the last value is used.
func New(props ...Property) Correlation {
	m := map[string]any{}
	for _, p := range props {
		m[p.Key] = p.Value
	}

	return FromMap(m)
}

// FromMap returns a correlation with one property per element of m.
func FromMap(m map[string]any) Correlation {
	props := make([]Property, 0, len(m))
	for k, v := range m {
		props = append(props, Property{k, v})
	}

	sort.Slice(props, func(i, j int) bool {
		return props[i].Key < props[j].Key
	})

	return Correlation{props}
}

// Single returns a correlation with a single property.
func Single(key string, value any) Correlation {
	return Correlation{[]Property{{key, value}}}
}

// Properties returns the correlation's properties, ordered by key.
func (c Correlation) Properties() []Property {
	return append([]Property(nil), c.properties...)
}

// Get returns the value of the property with the given key.
func (c Correlation) Get(key string) (any, bool) {
	for _, p := range c.properties {
		if p.Key == key {
			return p.Value, true
		}
	}

	return nil, false
}

// Len returns the number of properties in the correlation.
func (c Correlation) Len() int {
	return len(c.properties)
}

// Map returns the correlation's properties as a map.
func (c Correlation) Map() map[string]any {
	m := make(map[string]any, len(c.properties))
	for _, p := range c.properties {
		m[p.Key] = p.Value
	}

	return m
}

func (c Correlation) String() string {
	return fmt.Sprint(c.Map())
}

// MarshalJSON returns the correlation as a JSON object.
func (c Correlation) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

// UnmarshalJSON populates the correlation from a JSON object.
func (c *Correlation) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	*c = FromMap(m)

	return nil
}
