package queryir

import (
	"fmt"

	"github.com/roach88/sharedstore/internal/ir"
)

// Validation error codes (Q001-Q099).
const (
	ErrUnknownEntity     = "Q001" // entity not in the model
	ErrUnknownField      = "Q002" // attribute not declared on the entity
	ErrTypeMismatch      = "Q003" // literal kind differs from attribute type
	ErrUnsupportedValue  = "Q004" // arrays and objects cannot be compared
	ErrNilPredicate      = "Q005" // nil predicate inside And
	ErrNegativeLimit     = "Q006" // limit below zero
	ErrUnsupportedFilter = "Q007" // predicate type unknown to this package
)

// ValidationError describes why a request cannot be executed.
type ValidationError struct {
	Code    string
	Entity  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Entity, e.Message)
}

// Validate checks a request against the model. It returns the first
// problem found; requests that pass compile and match without error.
//
// Validate is a pure function with no side effects.
func Validate(req FetchRequest, model *ir.Model) error {
	entity, ok := model.Entity(req.Entity)
	if !ok {
		return &ValidationError{Code: ErrUnknownEntity, Entity: req.Entity, Message: "entity not found in model"}
	}
	if req.Limit < 0 {
		return &ValidationError{Code: ErrNegativeLimit, Entity: req.Entity, Message: fmt.Sprintf("limit %d is negative", req.Limit)}
	}
	if req.Filter == nil {
		return nil
	}
	return validatePredicate(entity, req.Filter)
}

func validatePredicate(entity *ir.EntityDescriptor, p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return &ValidationError{Code: ErrNilPredicate, Entity: entity.Name, Message: "nil predicate"}
	case Equals:
		return validateComparison(entity, pred.Field, pred.Value)
	case *Equals:
		return validateComparison(entity, pred.Field, pred.Value)
	case NotEquals:
		return validateComparison(entity, pred.Field, pred.Value)
	case *NotEquals:
		return validateComparison(entity, pred.Field, pred.Value)
	case And:
		return validateAnd(entity, pred)
	case *And:
		return validateAnd(entity, *pred)
	default:
		return &ValidationError{Code: ErrUnsupportedFilter, Entity: entity.Name, Message: fmt.Sprintf("unsupported predicate type %T", p)}
	}
}

func validateAnd(entity *ir.EntityDescriptor, and And) error {
	for _, p := range and.Predicates {
		if err := validatePredicate(entity, p); err != nil {
			return err
		}
	}
	return nil
}

func validateComparison(entity *ir.EntityDescriptor, field string, value ir.Value) error {
	if value == nil {
		return &ValidationError{Code: ErrUnsupportedValue, Entity: entity.Name, Field: field, Message: "nil value"}
	}
	if field == IDField {
		if value.Kind() != ir.KindString {
			return &ValidationError{Code: ErrTypeMismatch, Entity: entity.Name, Field: field, Message: "id compares against string values only"}
		}
		return nil
	}

	attr, ok := entity.Attribute(field)
	if !ok {
		return &ValidationError{Code: ErrUnknownField, Entity: entity.Name, Field: field, Message: "attribute not declared"}
	}
	switch attr.Type {
	case ir.KindArray, ir.KindObject:
		return &ValidationError{Code: ErrUnsupportedValue, Entity: entity.Name, Field: field, Message: fmt.Sprintf("%s attributes cannot be compared", attr.Type)}
	}
	if value.Kind() != attr.Type {
		return &ValidationError{
			Code:    ErrTypeMismatch,
			Entity:  entity.Name,
			Field:   field,
			Message: fmt.Sprintf("expected %s value, got %s", attr.Type, value.Kind()),
		}
	}
	return nil
}
