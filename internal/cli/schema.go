package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sharedstore/internal/ir"
)

// SchemaOutput is the data payload for `sharedstore schema`.
type SchemaOutput struct {
	Hash     string                `json:"hash"`
	Entities []*ir.EntityDescriptor `json:"entities"`
}

func (o SchemaOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "model %s\n", o.Hash)
	for _, e := range o.Entities {
		fmt.Fprintf(&b, "  %s\n", e.Name)
		for _, a := range e.Attributes {
			opt := ""
			if a.Optional {
				opt = "?"
			}
			fmt.Fprintf(&b, "    %s%s: %s\n", a.Name, opt, a.Type)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Compile and print the entity model",
		Long: `Compile the CUE entity declarations in the schema directory and print
the resulting model with its hash. The store is not opened.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, cmd)
		},
	}
}

func runSchema(rootOpts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, rootOpts)

	result, err := loadModel(rootOpts, formatter)
	if err != nil {
		return err
	}
	return formatter.Success(SchemaOutput{
		Hash:     result.Model.Hash(),
		Entities: result.Model.Entities(),
	})
}
