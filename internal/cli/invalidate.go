package cli

import (
	"context"
	"fmt"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/entitycache"
	"github.com/goliatone/go-query-cache/pkg/config"
	"github.com/goliatone/go-query-cache/pkg/logging"
	"github.com/goliatone/go-query-cache/querycache"
	"github.com/goliatone/go-query-cache/searchindex"
	"github.com/spf13/cobra"
)

// NewInvalidateCommand creates the invalidate command. It only makes sense
// against a shared store, so the configured cache backend is usually redis.
func NewInvalidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Remove entries from the configured cache store",
	}
	cmd.AddCommand(newInvalidateQueryCommand(rootOpts))
	cmd.AddCommand(newInvalidateEntityCommand(rootOpts))
	cmd.AddCommand(newInvalidatePagesCommand(rootOpts))
	return cmd
}

// withService loads the configuration, opens the cache service and runs
// fn with it.
func withService(ctx context.Context, rootOpts *RootOptions, fn func(*cache.Service) error) error {
	cfg, err := config.Load(rootOpts.ConfigPath)
	if err != nil {
		return err
	}
	svc, err := cache.New(cfg.Cache, logging.New(cfg.Logging))
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func writeRemoved(rootOpts *RootOptions, cmd *cobra.Command, removed int) error {
	return newFormatter(rootOpts, cmd).Write(
		fmt.Sprintf("removed %d entries", removed),
		map[string]any{"removed": removed},
	)
}

func newInvalidateQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		spec []string
		rec  string
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "query <entity>",
		Short: "Invalidate the query results that may hold a record, or all of them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && rec == "" {
				return fmt.Errorf("either --record or --all is required")
			}
			record, err := readJSONInput(cmd, rec, "")
			if err != nil {
				return fmt.Errorf("--record: %w", err)
			}

			ctx := cmd.Context()
			return withService(ctx, rootOpts, func(svc *cache.Service) error {
				qc := querycache.New(svc, args[0], querycache.ClusterSpec(spec))
				if all {
					return writeRemoved(rootOpts, cmd, qc.InvalidateAll(ctx))
				}
				return writeRemoved(rootOpts, cmd, qc.InvalidateCache(ctx, record))
			})
		},
	}
	cmd.Flags().StringSliceVar(&spec, "spec", nil, "cluster fields, in order")
	cmd.Flags().StringVar(&rec, "record", "", "record whose clusters are invalidated")
	cmd.Flags().BoolVar(&all, "all", false, "invalidate every query result of the entity")
	return cmd
}

func newInvalidateEntityCommand(rootOpts *RootOptions) *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "entity <entity> [id]",
		Short: "Remove an entity from the point cache, or every entity with --clear",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !clearAll && len(args) != 2 {
				return fmt.Errorf("an id is required unless --clear is set")
			}

			ctx := cmd.Context()
			return withService(ctx, rootOpts, func(svc *cache.Service) error {
				ec := entitycache.New[map[string]any](svc, args[0])
				if clearAll {
					return writeRemoved(rootOpts, cmd, ec.Clear(ctx))
				}
				ec.DelEntityFromCache(ctx, args[1])
				return newFormatter(rootOpts, cmd).Write("removed "+entitycache.EntityKey(args[0], args[1]), map[string]any{
					"key": entitycache.EntityKey(args[0], args[1]),
				})
			})
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "remove every entry of the entity")
	return cmd
}

func newInvalidatePagesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pages <index>",
		Short: "Drop every cached search page of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withService(ctx, rootOpts, func(svc *cache.Service) error {
				removed, err := svc.DeleteByPrefix(ctx, searchindex.PageCachePrefix(args[0]))
				if err != nil {
					return err
				}
				return writeRemoved(rootOpts, cmd, removed)
			})
		},
	}
}
