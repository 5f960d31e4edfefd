package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// PathResult is the data payload for `sharedstore path`.
type PathResult struct {
	Name        string `json:"name"`
	GroupID     string `json:"group_id"`
	Path        string `json:"path"`
	Initialized bool   `json:"initialized"`
}

func (r PathResult) String() string {
	state := "not initialized"
	if r.Initialized {
		state = "initialized"
	}
	return fmt.Sprintf("%s (%s)", r.Path, state)
}

// NewPathCommand creates the path command.
func NewPathCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the store file lives",
		Long: `Resolve the store file inside its group container and report whether
it has been created yet. The store is not opened.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPath(rootOpts, cmd)
		},
	}
}

func runPath(rootOpts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, rootOpts)

	s := newSession(rootOpts, formatter, nil)
	path, err := s.manager.Path()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "cannot resolve store location", err)
	}

	return formatter.Success(PathResult{
		Name:        s.manager.Name(),
		GroupID:     s.manager.GroupID(),
		Path:        path,
		Initialized: s.manager.IsStoreFileInitialized(),
	})
}
