package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeql/internal/ir"
	"github.com/roach88/pipeql/internal/schemaexport"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Export string // "", "avro" or "parquet"
	Name   string // record name for exports
}

// SchemaResult is the JSON payload of the schema command.
type SchemaResult struct {
	ID     string `json:"id"`
	Format string `json:"format"`
	Schema any    `json:"schema"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema <file>",
		Short: "Load a schema document and print it",
		Long: `Load a JSON, YAML or CUE schema document and print its canonical JSON
form and content ID.

With --export avro the schema is converted to an Avro record schema and
validated by building a codec. With --export parquet it is converted to a
Parquet message type.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Export, "export", "", "export format (avro|parquet)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "record name for exports (default: file name)")

	return cmd
}

func runSchema(opts *SchemaOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	s, err := loadSchema(path)
	if err != nil {
		return formatter.Fail("load schema", err)
	}
	id, err := ir.SchemaID(s)
	if err != nil {
		return formatter.Fail("hash schema", err)
	}
	formatter.VerboseLog("Loaded schema %s (%s), id %s", path, ir.SchemaKind(s), id)

	name := opts.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	switch opts.Export {
	case "":
		data, err := ir.MarshalSchema(s)
		if err != nil {
			return formatter.Fail("encode schema", err)
		}
		return formatter.Success(SchemaResult{ID: id, Format: "json", Schema: json.RawMessage(data)}, string(data))
	case "avro":
		codec, err := schemaexport.Avro(name, s)
		if err != nil {
			return formatter.Fail("export avro", exportError(err))
		}
		data := []byte(codec.Schema())
		return formatter.Success(SchemaResult{ID: id, Format: "avro", Schema: json.RawMessage(data)}, string(data))
	case "parquet":
		schema, err := schemaexport.Parquet(name, s)
		if err != nil {
			return formatter.Fail("export parquet", exportError(err))
		}
		text := schema.String()
		return formatter.Success(SchemaResult{ID: id, Format: "parquet", Schema: text}, text)
	default:
		return formatter.Fail("export", &LoadError{
			Code:    ErrCodeGeneric,
			Message: fmt.Sprintf("unknown export format %q: must be avro or parquet", opts.Export),
		})
	}
}

func exportError(err error) error {
	return &LoadError{Code: ErrCodeSchemaLoad, Message: "schema not exportable", Err: err}
}
