package cli

import (
	"fmt"

	"github.com/goliatone/go-query-cache/entitycache"
	"github.com/goliatone/go-query-cache/query/search"
	"github.com/goliatone/go-query-cache/querycache"
	"github.com/goliatone/go-query-cache/searchindex"
	"github.com/spf13/cobra"
)

// NewKeyCommand creates the key command and its subcommands.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the cache keys derived for entities, queries and pages",
	}
	cmd.AddCommand(newEntityKeyCommand(rootOpts))
	cmd.AddCommand(newQueryKeyCommand(rootOpts))
	cmd.AddCommand(newPageKeyCommand(rootOpts))
	return cmd
}

func newEntityKeyCommand(rootOpts *RootOptions) *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "entity <entity> <id|value>",
		Short: "Print the point cache key of an entity, or an index key with --field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := entitycache.EntityKey(args[0], args[1])
			if field != "" {
				key = entitycache.IndexKey(args[0], field, args[1])
			}
			return newFormatter(rootOpts, cmd).Write(key, map[string]any{"key": key})
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "index field; the second argument is then its value")
	return cmd
}

func newQueryKeyCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		spec  []string
		where string
		extra string
	)

	cmd := &cobra.Command{
		Use:   "query <entity>",
		Short: "Print the query result key of a filter object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := readJSONInput(cmd, where, "")
			if err != nil {
				return fmt.Errorf("--where: %w", err)
			}
			x, err := readJSONInput(cmd, extra, "")
			if err != nil {
				return fmt.Errorf("--extra: %w", err)
			}

			key := querycache.BuildCacheKey(args[0], querycache.ClusterSpec(spec), w, x)
			return newFormatter(rootOpts, cmd).Write(key, map[string]any{
				"key":       key,
				"signature": querycache.Signature(querycache.ClusterSpec(spec), w),
			})
		},
	}
	cmd.Flags().StringSliceVar(&spec, "spec", nil, "cluster fields, in order")
	cmd.Flags().StringVar(&where, "where", "", "filter object")
	cmd.Flags().StringVar(&extra, "extra", "", "extra parameters (limit, offset, order...)")
	return cmd
}

func newPageKeyCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		filter string
		from   int
		size   int
	)

	cmd := &cobra.Command{
		Use:   "page <index>",
		Short: "Print the page cache key of a search request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readJSONInput(cmd, filter, "")
			if err != nil {
				return fmt.Errorf("--filter: %w", err)
			}
			q, err := search.Compile(f)
			if err != nil {
				return err
			}

			key := searchindex.PageKey(args[0], q, from, size, nil)
			return newFormatter(rootOpts, cmd).Write(key, map[string]any{"key": key})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "filter object")
	cmd.Flags().IntVar(&from, "from", 0, "offset of the page")
	cmd.Flags().IntVar(&size, "size", searchindex.DefaultPageSize, "page size")
	return cmd
}
