// Package queryir provides the fetch request representation used by store
// contexts.
//
// A FetchRequest names one entity and an optional filter. Filters are built
// from a sealed set of predicates:
//
//	Equals{Field, Value}     attribute = value
//	NotEquals{Field, Value}  attribute is not value (missing attributes match)
//	And{Predicates}          all must hold; empty And is always true
//
// The pseudo-field "id" compares the object identifier.
//
// SEALED INTERFACES:
//
// Predicate is sealed with the marker method pattern so that backends can
// switch exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case NotEquals:
//	case And:
//	}
//
// The same request is evaluated two ways: compiled to SQL by querysql for
// persisted rows, and by Matches for objects still pending in a context.
// Both must agree, which is why the fragment is this small.
package queryir
