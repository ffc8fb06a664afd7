package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/t3up/analyzer/internal/cache"
	"github.com/t3up/analyzer/internal/messages"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   messages.CacheUse,
		Short: messages.CacheShort,
	}
	cmd.AddCommand(newCacheClearCmd(root))
	return cmd
}

func newCacheClearCmd(root *rootOptions) *cobra.Command {
	var (
		typeFlags []string
		dryRun    bool
		force     bool
	)
	cmd := &cobra.Command{
		Use:   messages.CacheClearUse,
		Short: messages.CacheClearShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClear(cmd, root, typeFlags, dryRun, force)
		},
	}
	cmd.Flags().StringSliceVar(&typeFlags, "type", nil, messages.CacheTypeFlagHelp)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, messages.CacheDryRunFlagHelp)
	cmd.Flags().BoolVar(&force, "force", false, messages.CacheForceFlagHelp)
	return cmd
}

func runCacheClear(cmd *cobra.Command, root *rootOptions, typeFlags []string, dryRun, force bool) error {
	out := cmd.OutOrStdout()

	types := cache.Types()
	if len(typeFlags) > 0 {
		types = types[:0]
		for _, raw := range typeFlags {
			t := cache.Type(raw)
			if !cache.ValidType(t) {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), messages.CacheInvalidTypeFmt, raw, knownCacheTypes())
				return &SilentExitError{Code: exitBlocking}
			}
			types = append(types, t)
		}
	}

	cfg, _, err := root.loadConfig()
	if err != nil {
		return err
	}
	dir, err := cfg.CacheDir()
	if err != nil {
		return err
	}
	store := cache.NewDisk(dir)

	if dryRun {
		empty := true
		for _, t := range types {
			stats, err := store.Stats(cmd.Context(), t)
			if err != nil {
				_, _ = fmt.Fprintf(out, messages.CacheStatsFailedFmt, t, err)
				return &SilentExitError{Code: exitFailure}
			}
			if stats.Entries == 0 {
				continue
			}
			empty = false
			_, _ = fmt.Fprintf(out, messages.CacheWouldClearFmt, t, stats.Entries, humanBytes(stats.Bytes))
		}
		if empty {
			_, _ = fmt.Fprintln(out, messages.CacheNothingToClear)
		}
		return nil
	}

	failed := false
	for _, t := range types {
		cleared, err := store.Clear(cmd.Context(), t)
		if err != nil {
			_, _ = fmt.Fprintf(out, messages.CacheClearFailedFmt, t, err)
			failed = true
			continue
		}
		_, _ = fmt.Fprintf(out, messages.CacheClearedFmt, t, cleared.Entries, humanBytes(cleared.Bytes))
	}
	if failed && !force {
		return &SilentExitError{Code: exitFailure}
	}
	return nil
}

func knownCacheTypes() string {
	names := make([]string, 0, len(cache.Types()))
	for _, t := range cache.Types() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
