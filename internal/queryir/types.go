package queryir

import "github.com/roach88/sharedstore/internal/ir"

// IDField is the pseudo-attribute that addresses the object identifier.
const IDField = ir.ReservedAttribute

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Equals matches objects whose attribute equals Value.
// Objects that lack the attribute never match.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// NotEquals matches objects whose attribute differs from Value, including
// objects that lack the attribute entirely.
type NotEquals struct {
	Field string
	Value ir.Value
}

func (NotEquals) predicateNode() {}

// And matches when every predicate matches.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// FetchRequest selects objects of one entity.
type FetchRequest struct {
	// Entity names the entity descriptor to scope the fetch to.
	Entity string

	// Filter restricts results (nil = every object of the entity).
	Filter Predicate

	// Limit caps the number of results (0 = unlimited).
	Limit int
}

// All returns an unfiltered request for every object of entity.
func All(entity string) FetchRequest {
	return FetchRequest{Entity: entity}
}

// Where returns a request for objects of entity matching every predicate.
func Where(entity string, predicates ...Predicate) FetchRequest {
	switch len(predicates) {
	case 0:
		return All(entity)
	case 1:
		return FetchRequest{Entity: entity, Filter: predicates[0]}
	default:
		return FetchRequest{Entity: entity, Filter: And{Predicates: predicates}}
	}
}

// Eq is shorthand for Equals.
func Eq(field string, value ir.Value) Equals {
	return Equals{Field: field, Value: value}
}

// Ne is shorthand for NotEquals.
func Ne(field string, value ir.Value) NotEquals {
	return NotEquals{Field: field, Value: value}
}
