package ir

import (
	"fmt"
	"regexp"
	"sort"
)

// ReservedAttribute is the name every object exposes as its identity.
// Entities may not declare an attribute with this name.
const ReservedAttribute = "id"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdentifier reports whether s is usable as an entity or attribute name.
// Names are interpolated into JSON paths, so the alphabet is restricted.
func IsIdentifier(s string) bool {
	return identRe.MatchString(s)
}

// AttributeDescriptor declares one attribute of an entity.
type AttributeDescriptor struct {
	Name     string `json:"name" yaml:"name"`
	Type     Kind   `json:"type" yaml:"type"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// EntityDescriptor describes one type of managed object.
type EntityDescriptor struct {
	Name       string                `json:"name" yaml:"name"`
	Attributes []AttributeDescriptor `json:"attributes" yaml:"attributes"`
}

// Attribute looks up an attribute by name.
func (e *EntityDescriptor) Attribute(name string) (AttributeDescriptor, bool) {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeDescriptor{}, false
}

// Check validates a full attribute set against the descriptor: every key
// must be declared with a matching kind and every non-optional attribute
// must be present.
func (e *EntityDescriptor) Check(attrs Object) error {
	for _, k := range attrs.SortedKeys() {
		a, ok := e.Attribute(k)
		if !ok {
			return fmt.Errorf("%s: unknown attribute %q", e.Name, k)
		}
		if got := attrs[k].Kind(); got != a.Type {
			return fmt.Errorf("%s.%s: expected %s, got %s", e.Name, k, a.Type, got)
		}
	}
	for _, a := range e.Attributes {
		if _, ok := attrs[a.Name]; !ok && !a.Optional {
			return fmt.Errorf("%s.%s: required attribute missing", e.Name, a.Name)
		}
	}
	return nil
}

// Model is a compiled, immutable set of entity descriptors.
// Build one with NewModel; the zero value is empty.
type Model struct {
	entities []*EntityDescriptor
	byName   map[string]*EntityDescriptor
	hash     string
}

// NewModel builds a model from descriptors. Entity and attribute names must
// be identifiers and unique. Attributes are kept sorted by name so that two
// declarations of the same entity produce the same hash.
func NewModel(entities ...*EntityDescriptor) (*Model, error) {
	m := &Model{byName: make(map[string]*EntityDescriptor, len(entities))}
	for _, e := range entities {
		if e == nil {
			return nil, fmt.Errorf("nil entity descriptor")
		}
		if !IsIdentifier(e.Name) {
			return nil, fmt.Errorf("invalid entity name %q", e.Name)
		}
		if _, dup := m.byName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", e.Name)
		}

		cp := &EntityDescriptor{Name: e.Name, Attributes: make([]AttributeDescriptor, len(e.Attributes))}
		copy(cp.Attributes, e.Attributes)
		sort.Slice(cp.Attributes, func(i, j int) bool { return cp.Attributes[i].Name < cp.Attributes[j].Name })

		for i, a := range cp.Attributes {
			if !IsIdentifier(a.Name) {
				return nil, fmt.Errorf("%s: invalid attribute name %q", e.Name, a.Name)
			}
			if a.Name == ReservedAttribute {
				return nil, fmt.Errorf("%s: attribute name %q is reserved", e.Name, a.Name)
			}
			if a.Type == KindInvalid {
				return nil, fmt.Errorf("%s.%s: missing type", e.Name, a.Name)
			}
			if i > 0 && cp.Attributes[i-1].Name == a.Name {
				return nil, fmt.Errorf("%s: duplicate attribute %q", e.Name, a.Name)
			}
		}

		m.entities = append(m.entities, cp)
		m.byName[cp.Name] = cp
	}

	hash, err := ModelHash(m)
	if err != nil {
		return nil, err
	}
	m.hash = hash
	return m, nil
}

// MustModel is NewModel for static declarations; it panics on error.
func MustModel(entities ...*EntityDescriptor) *Model {
	m, err := NewModel(entities...)
	if err != nil {
		panic(err)
	}
	return m
}

// Entities returns descriptors in declaration order.
func (m *Model) Entities() []*EntityDescriptor {
	if m == nil {
		return nil
	}
	out := make([]*EntityDescriptor, len(m.entities))
	copy(out, m.entities)
	return out
}

// Entity looks up a descriptor by name.
func (m *Model) Entity(name string) (*EntityDescriptor, bool) {
	if m == nil {
		return nil, false
	}
	e, ok := m.byName[name]
	return e, ok
}

// EntityNames returns the entity names in declaration order.
func (m *Model) EntityNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.entities))
	for i, e := range m.entities {
		names[i] = e.Name
	}
	return names
}

// Hash returns the content hash computed at construction.
func (m *Model) Hash() string {
	if m == nil {
		return ""
	}
	return m.hash
}
