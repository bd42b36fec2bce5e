package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/config"
	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/watch"
	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

var (
	watchType     string
	watchChecks   []string
	watchDebounce time.Duration
	watchInclude  []string
	watchExclude  []string
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Re-review documents whenever they change",
	Long: `Watch a directory tree and review every document that is created or
modified. Bursts of writes are coalesced, so saving a file several times in
a row runs one review. Hidden directories, including .smartreviewer, are
ignored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		dir := services.Root
		if len(args) > 0 {
			dir = resolvePath(services.Root, args[0])
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		filter := watch.NewPatternFilter(watchInclude, watchExclude)
		w, err := watch.NewFSWatcher(watchDebounce, filter, func(batch []watch.ChangeEvent) {
			reviewChanges(ctx, out, services, batch)
		})
		if err != nil {
			return err
		}
		w.WithLogger(logger)
		if err := w.WatchRecursive(dir); err != nil {
			return err
		}

		fmt.Fprintf(out, "Watching %s for document changes (Ctrl+C to stop)\n", dir)
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func reviewChanges(ctx context.Context, out io.Writer, services *wiring.AppServices, batch []watch.ChangeEvent) {
	for _, change := range batch {
		if change.Removed() || ctx.Err() != nil {
			continue
		}
		doc, err := config.LoadDocument(change.Path, review.DocumentType(watchType))
		if err != nil {
			logger.Warn("skip changed file", "path", change.Path, "error", err)
			continue
		}
		if doc.Type == "" {
			logger.Info("skip document without type", "path", change.Path)
			continue
		}
		res, err := services.Reviews.Review(ctx, doc, watchChecks, services.ReviewOptions())
		if res == nil {
			fmt.Fprintf(out, "%s %s: %v\n", time.Now().Format("15:04:05"), change.Path, err)
			continue
		}
		fmt.Fprintf(out, "%s %s %s (%d findings, review %s)\n",
			time.Now().Format("15:04:05"), doc.ID, styleStatus(string(res.Status)), len(res.Findings), res.ID)
	}
}

func init() {
	watchCmd.Flags().StringVarP(&watchType, "type", "t", "", "Document type for files that do not declare one")
	watchCmd.Flags().StringSliceVarP(&watchChecks, "checks", "c", nil, "Check item ids to run")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Quiet period before a review starts")
	watchCmd.Flags().StringSliceVar(&watchInclude, "include", nil, "Glob patterns of documents to watch (default: markdown, yaml, json)")
	watchCmd.Flags().StringSliceVar(&watchExclude, "exclude", nil, "Glob patterns to ignore")
	RootCmd.AddCommand(watchCmd)
}
