package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeql/internal/compiler"
	"github.com/roach88/pipeql/internal/ir"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Schema   string // schema document path
	Pipeline bool   // treat the argument as a pipeline JSON file
}

// CheckResult is the JSON payload of the check command.
type CheckResult struct {
	ID       string          `json:"id"`
	Stages   int             `json:"stages"`
	Output   json.RawMessage `json:"output,omitempty"`
	Problems []string        `json:"problems,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <query>",
		Short: "Type-check a query against a schema",
		Long: `Compile a query and type-check its pipeline against the schema of the
input documents.

On success the schema of the emitted documents is printed. Every type
problem is reported with its stage index and field path; ill-typed
pipelines exit with status 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema document (.json, .yaml or .cue) (required)")
	_ = cmd.MarkFlagRequired("schema")
	cmd.Flags().BoolVar(&opts.Pipeline, "pipeline", false, "argument is a pipeline JSON file instead of a query")

	return cmd
}

func runCheck(opts *CheckOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	c := compiler.New(compiler.WithLogger(opts.Logger(cmd.ErrOrStderr())))

	schema, err := loadSchema(opts.Schema)
	if err != nil {
		return formatter.Fail("load schema", err)
	}

	var res *compiler.Result
	if opts.Pipeline {
		data, readErr := readInput(arg, cmd.InOrStdin())
		if readErr != nil {
			return formatter.Fail("read pipeline", readErr)
		}
		res, err = c.Decode(data)
	} else {
		res, err = c.Compile(arg)
	}
	if err != nil {
		return formatter.Fail("compile", err)
	}

	res, err = c.CheckPipeline(res, schema)
	result := CheckResult{ID: res.ID, Stages: res.Pipeline.Len()}
	if res.Output != nil {
		data, encErr := ir.MarshalSchema(res.Output)
		if encErr != nil {
			return formatter.Fail("encode output schema", encErr)
		}
		result.Output = json.RawMessage(data)
	}

	var checkErr *compiler.CheckError
	if errors.As(err, &checkErr) {
		return outputCheckProblems(formatter, result, checkErr)
	}
	if err != nil {
		return formatter.Fail("check", err)
	}

	return formatter.Success(result, fmt.Sprintf("✓ %d stage(s) type-check\nOutput: %s", result.Stages, result.Output))
}

// outputCheckProblems lists type problems and fails with ExitFailure.
func outputCheckProblems(formatter *OutputFormatter, result CheckResult, checkErr *compiler.CheckError) error {
	for _, p := range checkErr.Problems {
		result.Problems = append(result.Problems, p.String())
	}
	message := fmt.Sprintf("%d type problem(s)", len(checkErr.Problems))

	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeTypeCheck, Message: message},
		}); err != nil {
			return err
		}
	} else {
		var b strings.Builder
		fmt.Fprintf(&b, "✗ %s\n", message)
		for _, p := range result.Problems {
			fmt.Fprintf(&b, "  %s\n", p)
		}
		fmt.Fprint(formatter.Writer, b.String())
	}
	exitErr := WrapExitError(ExitFailure, message, checkErr)
	exitErr.Shown = true
	return exitErr
}
