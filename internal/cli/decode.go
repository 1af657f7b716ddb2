package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/pipeql/internal/compiler"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	Output string
	Pretty bool
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <file|->",
		Short: "Validate and canonicalize pipeline JSON",
		Long: `Decode a pipeline from its JSON encoding and print it canonically.

Key order and whitespace in the input do not matter. Unknown operator tags,
malformed nodes and extra members are rejected with the path of the
offending fragment. Use - to read from standard input.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "indent the pipeline JSON")

	return cmd
}

func runDecode(opts *DecodeOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail("read pipeline", err)
	}

	c := compiler.New(compiler.WithLogger(opts.Logger(cmd.ErrOrStderr())))
	res, err := c.Decode(data)
	if err != nil {
		return formatter.Fail("decode", err)
	}
	formatter.VerboseLog("Decoded %d stage(s), id %s", res.Pipeline.Len(), res.ID)

	return outputPipeline(formatter, res, opts.Output, opts.Pretty)
}
