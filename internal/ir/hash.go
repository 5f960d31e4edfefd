package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainModel  = "sharedstore/model/v1"
	DomainEntity = "sharedstore/entity/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// entityObject is the canonical form of a descriptor.
func entityObject(e *EntityDescriptor) Object {
	attrs := make(Object, len(e.Attributes))
	for _, a := range e.Attributes {
		attrs[a.Name] = Object{
			"type":     String(a.Type.String()),
			"optional": Bool(a.Optional),
		}
	}
	return Object{
		"name":       String(e.Name),
		"attributes": attrs,
	}
}

// EntityHash identifies a descriptor's shape. Attribute order does not
// affect it.
func EntityHash(e *EntityDescriptor) (string, error) {
	canonical, err := MarshalCanonical(entityObject(e))
	if err != nil {
		return "", fmt.Errorf("EntityHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEntity, canonical), nil
}

// EntityJSON returns the canonical JSON persisted for a descriptor.
func EntityJSON(e *EntityDescriptor) ([]byte, error) {
	return MarshalCanonical(entityObject(e))
}

// ModelHash identifies a model. Entity declaration order does not affect it.
func ModelHash(m *Model) (string, error) {
	entities := make(Object, len(m.entities))
	for _, e := range m.entities {
		entities[e.Name] = entityObject(e)
	}

	canonical, err := MarshalCanonical(entities)
	if err != nil {
		return "", fmt.Errorf("ModelHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainModel, canonical), nil
}

// ParseEntityJSON decodes the output of EntityJSON.
func ParseEntityJSON(data []byte) (*EntityDescriptor, error) {
	var obj Object
	if err := obj.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("parse entity: %w", err)
	}
	name, ok := obj["name"].(String)
	if !ok {
		return nil, fmt.Errorf("parse entity: missing name")
	}
	attrs, ok := obj["attributes"].(Object)
	if !ok {
		return nil, fmt.Errorf("parse entity %s: missing attributes", name)
	}

	e := &EntityDescriptor{Name: string(name)}
	for _, k := range attrs.SortedKeys() {
		def, ok := attrs[k].(Object)
		if !ok {
			return nil, fmt.Errorf("parse entity %s: attribute %q is not an object", name, k)
		}
		typeName, _ := def["type"].(String)
		kind, err := ParseKind(string(typeName))
		if err != nil {
			return nil, fmt.Errorf("parse entity %s.%s: %w", name, k, err)
		}
		optional, _ := def["optional"].(Bool)
		e.Attributes = append(e.Attributes, AttributeDescriptor{Name: k, Type: kind, Optional: bool(optional)})
	}
	return e, nil
}
