package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/queryir"
	"github.com/roach88/sharedstore/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	Where []string
	Limit int
}

// ObjectView is one fetched object in command output.
type ObjectView struct {
	ID         string    `json:"id"`
	Entity     string    `json:"entity"`
	Attributes ir.Object `json:"attributes"`
}

// QueryResult is the data payload for `sharedstore query`.
type QueryResult struct {
	Entity  string       `json:"entity"`
	Objects []ObjectView `json:"objects"`
}

func (r QueryResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s object(s)", len(r.Objects), r.Entity)
	for _, o := range r.Objects {
		attrs, _ := ir.MarshalCanonical(o.Attributes)
		fmt.Fprintf(&b, "\n  %s %s", o.ID, attrs)
	}
	return b.String()
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query <entity>",
		Short: "List objects of an entity",
		Long: `Open the store and fetch objects of one entity in insertion order.

Filters take the form attr=value or attr!=value and are combined with AND.
Values are parsed according to the attribute's declared type; "id" matches
the object identifier.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Where, "where", "w", nil, "filter attr=value or attr!=value (repeatable)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum number of objects (0 for all)")

	return cmd
}

func runQuery(rootOpts *RootOptions, opts *QueryOptions, entity string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, rootOpts)

	if opts.Limit < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--limit must not be negative", nil)
	}

	schema, err := loadModel(rootOpts, formatter)
	if err != nil {
		return err
	}

	s := newSession(rootOpts, formatter, schema.Model)
	desc, err := s.entity(entity)
	if err != nil {
		return err
	}

	preds, err := parseWhere(desc, opts.Where)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidWhere, "invalid filter", err)
	}
	req := queryir.Where(entity, preds...)
	req.Limit = opts.Limit

	ctx := cmd.Context()
	if err := s.load(ctx, nil); err != nil {
		return err
	}
	defer s.close()

	objs, err := s.manager.NewContext(store.CallerBound, "cli").Fetch(ctx, req)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeQueryFailed, "fetch failed", err)
	}

	result := QueryResult{Entity: entity, Objects: make([]ObjectView, 0, len(objs))}
	for _, o := range objs {
		result.Objects = append(result.Objects, ObjectView{
			ID:         o.ID(),
			Entity:     o.Entity(),
			Attributes: o.Attributes(),
		})
	}
	return formatter.Success(result)
}

// parseWhere turns attr=value and attr!=value terms into predicates.
func parseWhere(desc *ir.EntityDescriptor, terms []string) ([]queryir.Predicate, error) {
	preds := make([]queryir.Predicate, 0, len(terms))
	for _, term := range terms {
		negate := false
		field, raw, ok := strings.Cut(term, "!=")
		if ok {
			negate = true
		} else if field, raw, ok = strings.Cut(term, "="); !ok {
			return nil, fmt.Errorf("%q: expected attr=value or attr!=value", term)
		}
		field = strings.TrimSpace(field)

		kind := ir.KindString
		if field != queryir.IDField {
			attr, found := desc.Attribute(field)
			if !found {
				return nil, fmt.Errorf("%q: %s has no attribute %q", term, desc.Name, field)
			}
			kind = attr.Type
		}

		value, err := ir.ParseLiteral(raw, kind)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", term, err)
		}
		if negate {
			preds = append(preds, queryir.Ne(field, value))
		} else {
			preds = append(preds, queryir.Eq(field, value))
		}
	}
	return preds, nil
}
