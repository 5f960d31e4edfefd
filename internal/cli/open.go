package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sharedstore/internal/queryir"
	"github.com/roach88/sharedstore/internal/store"
)

// OpenOptions holds flags for the open command.
type OpenOptions struct {
	SeedPath string
}

// OpenResult is the data payload for `sharedstore open`.
type OpenResult struct {
	Path        string         `json:"path"`
	FirstLaunch bool           `json:"first_launch"`
	Seeded      int            `json:"seeded"`
	Counts      map[string]int `json:"counts"`
}

func (r OpenResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "opened %s", r.Path)
	if r.FirstLaunch {
		fmt.Fprintf(&b, " (first launch, seeded %d)", r.Seeded)
	}
	names := make([]string, 0, len(r.Counts))
	for name := range r.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "\n  %s: %d", name, r.Counts[name])
	}
	return b.String()
}

// NewOpenCommand creates the open command.
func NewOpenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OpenOptions{}

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the store, creating and seeding it on first launch",
		Long: `Open the store file in its group container, merging the compiled model
into it. When the file did not exist before, objects from --seed are
inserted by the migration step. A store that cannot be opened is reported
and the process exits with status 3.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SeedPath, "seed", "", "YAML file of objects inserted on first launch")

	return cmd
}

func runOpen(rootOpts *RootOptions, opts *OpenOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, rootOpts)

	schema, err := loadModel(rootOpts, formatter)
	if err != nil {
		return err
	}

	var seed []seedRecord
	if opts.SeedPath != "" {
		seed, err = loadSeedFile(opts.SeedPath, schema.Model)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeSeedFile, "invalid seed file", err)
		}
	}

	ctx := cmd.Context()
	s := newSession(rootOpts, formatter, schema.Model)
	firstLaunch := !s.manager.IsStoreFileInitialized()

	var seedErr error
	migrate := func(c *store.Context) {
		if !firstLaunch {
			return
		}
		seedErr = insertSeed(ctx, c, seed)
	}

	if err := s.load(ctx, migrate); err != nil {
		return err
	}
	defer s.close()

	if seedErr != nil {
		return formatter.Fail(ExitFailure, ErrCodeWriteFailed, "seeding store", seedErr)
	}

	path, _ := s.manager.Path()
	result := OpenResult{
		Path:        path,
		FirstLaunch: firstLaunch,
		Counts:      map[string]int{},
	}
	if firstLaunch {
		result.Seeded = len(seed)
	}

	reader := s.manager.NewContext(store.CallerBound, "cli")
	for _, name := range schema.Model.EntityNames() {
		n, err := reader.Count(ctx, queryir.All(name))
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeQueryFailed, "counting "+name, err)
		}
		result.Counts[name] = n
	}
	return formatter.Success(result)
}

func insertSeed(ctx context.Context, c *store.Context, seed []seedRecord) error {
	for _, rec := range seed {
		if _, err := c.Insert(rec.entity, rec.attrs); err != nil {
			c.Rollback()
			return err
		}
	}
	if !c.HasChanges() {
		return nil
	}
	return c.Save(ctx)
}
