package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/queryir"
	"github.com/roach88/sharedstore/internal/store"
)

// PurgeResult is the data payload for `sharedstore purge`.
type PurgeResult struct {
	Deleted map[string]int `json:"deleted"`
}

func (r PurgeResult) String() string {
	names := make([]string, 0, len(r.Deleted))
	for name := range r.Deleted {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("deleted %d %s object(s)", r.Deleted[name], name))
	}
	return strings.Join(lines, "\n")
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <entity>...",
		Short: "Delete every object of the named entities",
		Long: `Open the store and delete all objects of each named entity in one save.
Objects of other entities are left untouched.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(rootOpts, args, cmd)
		},
	}
}

func runPurge(rootOpts *RootOptions, entities []string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, rootOpts)

	schema, err := loadModel(rootOpts, formatter)
	if err != nil {
		return err
	}

	s := newSession(rootOpts, formatter, schema.Model)
	descs := make([]*ir.EntityDescriptor, 0, len(entities))
	for _, name := range entities {
		desc, err := s.entity(name)
		if err != nil {
			return err
		}
		descs = append(descs, desc)
	}

	ctx := cmd.Context()
	if err := s.load(ctx, nil); err != nil {
		return err
	}
	defer s.close()

	c := s.manager.NewContext(store.CallerBound, "purge")
	result := PurgeResult{Deleted: map[string]int{}}
	for _, desc := range descs {
		n, err := c.Count(ctx, queryir.All(desc.Name))
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeQueryFailed, "counting "+desc.Name, err)
		}
		result.Deleted[desc.Name] = n
	}

	c.DeleteAllEntities(ctx, descs...)
	if c.HasChanges() {
		rootOpts.Logger.Debug("saving deletions", "entities", entities)
		if err := c.Save(ctx); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeWriteFailed, "save failed", err)
		}
	}
	return formatter.Success(result)
}
