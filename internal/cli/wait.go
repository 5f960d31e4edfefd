package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
)

// WaitOptions holds flags for the wait command.
type WaitOptions struct {
	Timeout time.Duration
}

// WaitResult is the data payload for `sharedstore wait`.
type WaitResult struct {
	Path string `json:"path"`
}

func (r WaitResult) String() string { return r.Path }

// NewWaitCommand creates the wait command.
func NewWaitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WaitOptions{}

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Block until another process creates the store file",
		Long: `Wait for the store file to appear in the group container. Useful for
companion processes that share the store but never create it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWait(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "give up after this long (0 waits forever)")

	return cmd
}

func runWait(rootOpts *RootOptions, opts *WaitOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, rootOpts)

	s := newSession(rootOpts, formatter, nil)
	path, err := s.manager.Path()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "cannot resolve store location", err)
	}

	ctx := cmd.Context()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	rootOpts.Logger.Debug("waiting for store file", "path", path, "timeout", opts.Timeout)
	if err := s.resolver.WaitForFile(ctx, s.manager.GroupID(), s.manager.Name()); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return formatter.Fail(ExitFailure, ErrCodeTimeout, "store file did not appear", err)
		}
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "waiting for store file", err)
	}
	return formatter.Success(WaitResult{Path: path})
}
