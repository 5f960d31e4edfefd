package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sharedstore/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	errs := Validate([]*ir.EntityDescriptor{
		{Name: "Bookmark", Attributes: []ir.AttributeDescriptor{{Name: "url", Type: ir.KindString}}},
		{Name: "Marker"},
	})
	assert.Empty(t, errs)
}

func TestValidateNoEntities(t *testing.T) {
	errs := Validate(nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrNoEntities, errs[0].Code)
}

func TestValidateCollectsAll(t *testing.T) {
	errs := Validate([]*ir.EntityDescriptor{
		{Name: "bad-name"},
		{Name: "A", Attributes: []ir.AttributeDescriptor{
			{Name: "id", Type: ir.KindString},
			{Name: "x-y", Type: ir.KindInt},
			{Name: "untyped"},
			{Name: "dup", Type: ir.KindInt},
			{Name: "dup", Type: ir.KindInt},
		}},
		{Name: "A"},
	})

	assert.Equal(t, []string{
		ErrInvalidEntityName,
		ErrReservedAttribute,
		ErrInvalidAttrName,
		ErrInvalidAttrType,
		ErrDuplicateAttribute,
		ErrDuplicateEntity,
	}, codes(errs))
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Field: "entity.A", Message: "entity declared more than once", Code: ErrDuplicateEntity}
	assert.Equal(t, "[E102] entity.A: entity declared more than once", e.Error())
}
