package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeql/internal/compiler"
	"github.com/roach88/pipeql/internal/store"
)

// CatalogOptions holds flags shared by the catalog commands.
type CatalogOptions struct {
	*RootOptions
	Database string
	Schema   string // save: type-check against this schema first
	Schemas  bool   // show/list: operate on stored schemas
	Hash     string // list: only pipelines with this content ID
}

// PipelineEntry is the JSON form of a stored pipeline.
type PipelineEntry struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Query    string          `json:"query,omitempty"`
	Hash     string          `json:"hash"`
	Seq      int64           `json:"seq"`
	Pipeline json.RawMessage `json:"pipeline"`
}

// SchemaEntry is the JSON form of a stored schema.
type SchemaEntry struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Hash   string          `json:"hash"`
	Seq    int64           `json:"seq"`
	Schema json.RawMessage `json:"schema"`
}

func pipelineEntry(rec store.Record) PipelineEntry {
	return PipelineEntry{
		ID:       rec.ID,
		Name:     rec.Name,
		Query:    rec.Query,
		Hash:     rec.Hash,
		Seq:      rec.Seq,
		Pipeline: json.RawMessage(rec.JSON),
	}
}

func schemaEntry(rec store.SchemaRecord) SchemaEntry {
	return SchemaEntry{
		ID:     rec.ID,
		Name:   rec.Name,
		Hash:   rec.Hash,
		Seq:    rec.Seq,
		Schema: json.RawMessage(rec.JSON),
	}
}

// storeError tags catalog failures other than a missing name.
func storeError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return err
	}
	return &LoadError{Code: ErrCodeStore, Message: "catalog", Err: err}
}

func addDatabaseFlag(cmd *cobra.Command, opts *CatalogOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite catalog database (required)")
	_ = cmd.MarkFlagRequired("db")
}

// withStore opens the catalog, runs fn and closes the catalog again.
func withStore(opts *CatalogOptions, formatter *OutputFormatter, fn func(*store.Store) error) error {
	st, err := openStore(opts.Database)
	if err != nil {
		return formatter.Fail("open catalog", err)
	}
	defer st.Close()
	return fn(st)
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <name> <query|schema-file>",
		Short: "Compile a query and store it in the catalog",
		Long: `Compile a query and store the pipeline under a name.

Saving an existing name replaces its pipeline. With --schema the pipeline
is type-checked first and nothing is stored if it is ill-typed. With
--schemas the second argument is a schema document to store instead.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Schemas {
				return runSaveSchema(opts, args[0], args[1], cmd)
			}
			return runSave(opts, args[0], args[1], cmd)
		},
	}

	addDatabaseFlag(cmd, opts)
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "type-check against this schema document before saving")
	cmd.Flags().BoolVar(&opts.Schemas, "schemas", false, "store a schema document instead of a query")

	return cmd
}

func runSave(opts *CatalogOptions, name, query string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	c := compiler.New(compiler.WithLogger(opts.Logger(cmd.ErrOrStderr())))

	res, err := c.Compile(query)
	if err != nil {
		return formatter.Fail("compile", err)
	}
	if opts.Schema != "" {
		schema, err := loadSchema(opts.Schema)
		if err != nil {
			return formatter.Fail("load schema", err)
		}
		if _, err := c.CheckPipeline(res, schema); err != nil {
			return formatter.Fail("check", err)
		}
	}

	return withStore(opts, formatter, func(st *store.Store) error {
		rec, err := st.SavePipeline(cmd.Context(), name, query, res.Pipeline)
		if err != nil {
			return formatter.Fail("save pipeline", storeError(err))
		}
		formatter.VerboseLog("Saved %s as %s", rec.Name, rec.ID)
		return formatter.Success(pipelineEntry(rec), fmt.Sprintf("✓ Saved %s (seq %d, id %s)", rec.Name, rec.Seq, rec.Hash))
	})
}

func runSaveSchema(opts *CatalogOptions, name, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	schema, err := loadSchema(path)
	if err != nil {
		return formatter.Fail("load schema", err)
	}

	return withStore(opts, formatter, func(st *store.Store) error {
		rec, err := st.SaveSchema(cmd.Context(), name, schema)
		if err != nil {
			return formatter.Fail("save schema", storeError(err))
		}
		return formatter.Success(schemaEntry(rec), fmt.Sprintf("✓ Saved schema %s (seq %d, id %s)", rec.Name, rec.Seq, rec.Hash))
	})
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "show <name>",
		Short:         "Print a stored pipeline",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, opts)
	cmd.Flags().BoolVar(&opts.Schemas, "schemas", false, "show a stored schema")

	return cmd
}

func runShow(opts *CatalogOptions, name string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	return withStore(opts, formatter, func(st *store.Store) error {
		if opts.Schemas {
			rec, err := st.LoadSchema(cmd.Context(), name)
			if err != nil {
				return formatter.Fail("show schema", storeError(err))
			}
			return formatter.Success(schemaEntry(rec), rec.JSON)
		}

		rec, err := st.LoadPipeline(cmd.Context(), name)
		if err != nil {
			return formatter.Fail("show pipeline", storeError(err))
		}
		var b strings.Builder
		if rec.Query != "" {
			fmt.Fprintf(&b, "-- %s\n", rec.Query)
		}
		b.WriteString(rec.JSON)
		return formatter.Success(pipelineEntry(rec), b.String())
	})
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored pipelines",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	addDatabaseFlag(cmd, opts)
	cmd.Flags().BoolVar(&opts.Schemas, "schemas", false, "list stored schemas")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "only pipelines with this content ID")

	return cmd
}

func runList(opts *CatalogOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	return withStore(opts, formatter, func(st *store.Store) error {
		if opts.Schemas {
			return listSchemas(cmd.Context(), st, formatter)
		}

		var records []store.Record
		var err error
		if opts.Hash != "" {
			records, err = st.FindPipelinesByHash(cmd.Context(), opts.Hash)
		} else {
			records, err = st.ListPipelines(cmd.Context())
		}
		if err != nil {
			return formatter.Fail("list pipelines", storeError(err))
		}

		entries := make([]PipelineEntry, len(records))
		lines := make([]string, len(records))
		for i, rec := range records {
			entries[i] = pipelineEntry(rec)
			lines[i] = fmt.Sprintf("%-20s %4d  %s  %s", rec.Name, rec.Seq, shortHash(rec.Hash), rec.Query)
		}
		if len(records) == 0 {
			lines = []string{"No pipelines stored"}
		}
		return formatter.Success(entries, strings.Join(lines, "\n"))
	})
}

func listSchemas(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	records, err := st.ListSchemas(ctx)
	if err != nil {
		return formatter.Fail("list schemas", storeError(err))
	}

	entries := make([]SchemaEntry, len(records))
	lines := make([]string, len(records))
	for i, rec := range records {
		entries[i] = schemaEntry(rec)
		lines[i] = fmt.Sprintf("%-20s %4d  %s", rec.Name, rec.Seq, shortHash(rec.Hash))
	}
	if len(records) == 0 {
		lines = []string{"No schemas stored"}
	}
	return formatter.Success(entries, strings.Join(lines, "\n"))
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "delete <name>",
		Short:         "Remove a stored pipeline",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			return withStore(opts, formatter, func(st *store.Store) error {
				if err := st.DeletePipeline(cmd.Context(), args[0]); err != nil {
					return formatter.Fail("delete pipeline", storeError(err))
				}
				return formatter.Success(map[string]string{"name": args[0]}, fmt.Sprintf("✓ Deleted %s", args[0]))
			})
		},
	}

	addDatabaseFlag(cmd, opts)

	return cmd
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
