package queryir

import "github.com/roach88/sharedstore/internal/ir"

// Matches evaluates a predicate against an object held in memory.
// It mirrors the SQL produced by querysql: Equals never matches a missing
// attribute, NotEquals always does. Unknown predicate types never match.
func Matches(p Predicate, id string, attrs ir.Object) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Equals:
		v, ok := lookup(pred.Field, id, attrs)
		return ok && ir.Equal(v, pred.Value)
	case *Equals:
		return Matches(*pred, id, attrs)
	case NotEquals:
		v, ok := lookup(pred.Field, id, attrs)
		return !ok || !ir.Equal(v, pred.Value)
	case *NotEquals:
		return Matches(*pred, id, attrs)
	case And:
		for _, sub := range pred.Predicates {
			if !Matches(sub, id, attrs) {
				return false
			}
		}
		return true
	case *And:
		return Matches(*pred, id, attrs)
	default:
		return false
	}
}

func lookup(field, id string, attrs ir.Object) (ir.Value, bool) {
	if field == IDField {
		return ir.String(id), true
	}
	v, ok := attrs[field]
	return v, ok
}
