package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/dataprobe/internal/check"
	"github.com/hazz-dev/dataprobe/internal/config"
	"github.com/hazz-dev/dataprobe/internal/connection"
	"github.com/hazz-dev/dataprobe/internal/notify"
	"github.com/hazz-dev/dataprobe/internal/storage"
)

func executeRun(cmd *cobra.Command, cfg *config.Config, db *storage.DB, logger *slog.Logger) error {
	return runChecks(cmd.OutOrStdout(), cfg, db, logger)
}

type runEntry struct {
	id  string
	res check.Result
	err error
}

// runChecks executes every configured check concurrently. Each check
// is independent; one per goroutine, each with its own handles and
// timeout. Completed results are recorded in the results database.
func runChecks(out io.Writer, cfg *config.Config, db *storage.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	resolver := connection.NewResolver(cfg.Connections, logger)

	entries := make([]runEntry, len(cfg.Checks))
	var wg sync.WaitGroup

	for i, cc := range cfg.Checks {
		wg.Add(1)
		go func(i int, cc config.Check) {
			defer wg.Done()

			var sink notify.Sink
			switch cc.Sink {
			case "store":
				sink = notify.NewStoreSink(db)
			case "email":
				sink = notify.NewEmailSink(cfg.Email)
			}

			c, err := check.New(cc, resolver, notify.NewDispatcher(sink, logger), logger)
			if err != nil {
				entries[i] = runEntry{id: cc.ID, err: err}
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), cc.Timeout.Duration)
			defer cancel()

			res, err := c.Run(ctx)
			entries[i] = runEntry{id: c.ID(), res: res, err: err}

			if evaluationCompleted(err) {
				// The store sink already wrote a failed record; skip the
				// operational write only when that delivery succeeded.
				if cc.Sink == "store" && !res.WithinThreshold && err == nil {
					return
				}
				if werr := db.WriteResult(ctx, res.Fields()); werr != nil {
					logger.Error("recording result", "check", c.ID(), "error", werr)
				}
			}
		}(i, cc)
	}
	wg.Wait()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tVALUE\tMIN\tMAX\tSTATUS\tERROR")
	allPassed := true
	for _, e := range entries {
		status, value, min, max, errMsg := "pass", "-", "-", "-", ""
		switch {
		case e.err != nil && !evaluationCompleted(e.err):
			status = "error"
			errMsg = e.err.Error()
		case !e.res.WithinThreshold:
			status = "fail"
			var sinkErr *notify.SinkDeliveryError
			if errors.As(e.err, &sinkErr) {
				errMsg = sinkErr.Error()
			}
		}
		if evaluationCompleted(e.err) {
			value = fmt.Sprintf("%.2f", e.res.Value)
			min = fmt.Sprintf("%v", e.res.MinThreshold)
			max = fmt.Sprintf("%v", e.res.MaxThreshold)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.id, value, min, max, status, errMsg)
		if status != "pass" {
			allPassed = false
		}
	}
	w.Flush()

	if !allPassed {
		return fmt.Errorf("one or more data quality checks failed")
	}
	return nil
}

// evaluationCompleted reports whether the check reached a verdict. A
// FailedError or SinkDeliveryError happens after the record is built,
// so the result is still usable.
func evaluationCompleted(err error) bool {
	if err == nil {
		return true
	}
	var failed *check.FailedError
	var sink *notify.SinkDeliveryError
	return errors.As(err, &failed) || errors.As(err, &sink)
}
