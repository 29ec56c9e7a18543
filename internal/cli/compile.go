package cli

import (
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-query-cache/query/document"
	"github.com/goliatone/go-query-cache/query/relational"
	"github.com/goliatone/go-query-cache/query/search"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	BackendSearch     = "search"
	BackendDocument   = "document"
	BackendRelational = "relational"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Backend string
	Dialect string
	Negate  bool
	Filter  string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [file|-]",
		Short: "Compile a filter object for a backend",
		Long: `Compile a JSON filter object to the native query of a backend:
the search DSL, a document filter in extended JSON, or a SQL WHERE clause.

The filter is read from --filter, from the file argument, or from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runCompile(opts, path, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", BackendSearch, "target backend (search|document|relational)")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "postgres", "SQL dialect of the relational backend (postgres|sqlite)")
	cmd.Flags().BoolVar(&opts.Negate, "negate", false, "compile the negation of the filter")
	cmd.Flags().StringVarP(&opts.Filter, "filter", "f", "", "inline filter object")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	filter, err := readJSONInput(cmd, opts.Filter, path)
	if err != nil {
		return err
	}

	text, data, err := compileFilter(opts, filter)
	if err != nil {
		return err
	}
	return newFormatter(opts.RootOptions, cmd).Write(text, data)
}

// compileFilter returns the text rendering and the structured result of
// compiling filter with the selected backend.
func compileFilter(opts *CompileOptions, filter map[string]any) (string, any, error) {
	switch opts.Backend {
	case BackendSearch:
		compile := search.Compile
		if opts.Negate {
			compile = search.CompileNegated
		}
		q, err := compile(filter)
		if err != nil {
			return "", nil, err
		}
		b, err := json.MarshalIndent(q, "", "  ")
		if err != nil {
			return "", nil, err
		}
		return string(b), q, nil

	case BackendDocument:
		compile := document.Compile
		if opts.Negate {
			compile = document.CompileNegated
		}
		f, err := compile(filter)
		if err != nil {
			return "", nil, err
		}
		b, err := bson.MarshalExtJSON(f, false, false)
		if err != nil {
			return "", nil, err
		}
		return string(b), json.RawMessage(b), nil

	case BackendRelational:
		dialect, err := sqlDialect(opts.Dialect)
		if err != nil {
			return "", nil, err
		}
		compile := relational.Compile
		if opts.Negate {
			compile = relational.CompileNegated
		}
		clause, err := compile(filter)
		if err != nil {
			return "", nil, err
		}
		where := clause.Format(dialect)
		return where, map[string]any{"where": where}, nil
	}
	return "", nil, fmt.Errorf("unknown backend %q", opts.Backend)
}

func sqlDialect(name string) (schema.Dialect, error) {
	switch name {
	case "postgres", "pg":
		return pgdialect.New(), nil
	case "sqlite", "sqlite3":
		return sqlitedialect.New(), nil
	}
	return nil, fmt.Errorf("unknown dialect %q", name)
}
