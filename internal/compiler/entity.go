// Package compiler turns CUE entity declarations into an ir.Model.
//
// Schema files declare entities under the top-level "entity" struct:
//
//	entity: Bookmark: {
//		attributes: {
//			url:    string
//			title?: string
//			tags?:  [...string]
//		}
//	}
//
// Optional fields (marked with ?) become optional attributes.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sharedstore/internal/ir"
)

// CompileEntity parses a CUE value into an EntityDescriptor.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: Bookmark: { attributes: { url: string } }`)
//	desc, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Bookmark")))
func CompileEntity(v cue.Value) (*ir.EntityDescriptor, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	desc := &ir.EntityDescriptor{}

	// Entity name comes from the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		desc.Name = labels[len(labels)-1].String()
	}

	attrsVal := v.LookupPath(cue.ParsePath("attributes"))
	if !attrsVal.Exists() {
		return desc, nil // an entity without attributes is allowed
	}

	iter, err := attrsVal.Fields(cue.Optional(true))
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		kind, err := extractKind(iter.Value())
		if err != nil {
			if ce, ok := err.(*CompileError); ok {
				ce.Field = fmt.Sprintf("entity.%s.attributes.%s", desc.Name, iter.Label())
			}
			return nil, err
		}
		desc.Attributes = append(desc.Attributes, ir.AttributeDescriptor{
			Name:     iter.Label(),
			Type:     kind,
			Optional: iter.IsOptional(),
		})
	}

	return desc, nil
}

// CompileModel compiles every entity under the value's "entity" struct,
// validates them, and builds the model. Entities keep declaration order.
func CompileModel(v cue.Value) (*ir.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{Field: "entity", Message: "no entities declared", Pos: v.Pos()}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var entities []*ir.EntityDescriptor
	for iter.Next() {
		desc, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, err
		}
		entities = append(entities, desc)
	}

	if errs := Validate(entities); len(errs) > 0 {
		return nil, errs[0]
	}
	return ir.NewModel(entities...)
}

// extractKind converts a CUE type to an attribute kind.
// Floats are forbidden: attribute numbers are always integers.
func extractKind(v cue.Value) (ir.Kind, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.KindString, nil
	case cue.IntKind:
		return ir.KindInt, nil
	case cue.BoolKind:
		return ir.KindBool, nil
	case cue.ListKind:
		return ir.KindArray, nil
	case cue.StructKind:
		return ir.KindObject, nil
	case cue.FloatKind, cue.NumberKind:
		return ir.KindInvalid, &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return ir.KindInvalid, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
