package compiler

import (
	"fmt"

	"github.com/roach88/sharedstore/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrNoEntities         = "E100" // model declares no entities
	ErrInvalidEntityName  = "E101" // entity name is not an identifier
	ErrDuplicateEntity    = "E102" // entity declared twice
	ErrInvalidAttrName    = "E103" // attribute name is not an identifier
	ErrReservedAttribute  = "E104" // attribute uses the reserved name "id"
	ErrInvalidAttrType    = "E105" // attribute has no usable type
	ErrDuplicateAttribute = "E106" // attribute declared twice
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled entity descriptors against the model rules.
// Returns all errors found (does not fail-fast).
func Validate(entities []*ir.EntityDescriptor) []ValidationError {
	var errs []ValidationError

	if len(entities) == 0 {
		return []ValidationError{{
			Field:   "entity",
			Message: "at least one entity is required",
			Code:    ErrNoEntities,
		}}
	}

	seen := make(map[string]bool, len(entities))
	for _, e := range entities {
		field := "entity." + e.Name
		if !ir.IsIdentifier(e.Name) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("entity name %q must be an identifier", e.Name),
				Code:    ErrInvalidEntityName,
			})
		}
		if seen[e.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "entity declared more than once",
				Code:    ErrDuplicateEntity,
			})
		}
		seen[e.Name] = true
		errs = append(errs, validateAttributes(e)...)
	}

	return errs
}

func validateAttributes(e *ir.EntityDescriptor) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(e.Attributes))

	for _, a := range e.Attributes {
		field := fmt.Sprintf("entity.%s.attributes.%s", e.Name, a.Name)
		switch {
		case a.Name == ir.ReservedAttribute:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q is reserved for the object identifier", ir.ReservedAttribute),
				Code:    ErrReservedAttribute,
			})
		case !ir.IsIdentifier(a.Name):
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "attribute name must be an identifier",
				Code:    ErrInvalidAttrName,
			})
		}
		if a.Type == ir.KindInvalid {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "attribute type is required",
				Code:    ErrInvalidAttrType,
			})
		}
		if seen[a.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "attribute declared more than once",
				Code:    ErrDuplicateAttribute,
			})
		}
		seen[a.Name] = true
	}

	return errs
}
