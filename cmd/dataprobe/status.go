package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/dataprobe/internal/storage"
)

type statusStore interface {
	AllLatest(ctx context.Context) ([]storage.StoredResult, error)
}

func executeStatus(cmd *cobra.Command, db statusStore) error {
	out := cmd.OutOrStdout()
	results, err := db.AllLatest(context.Background())
	if err != nil {
		return fmt.Errorf("querying status: %w", err)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No check history. Run 'dataprobe run' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tVALUE\tMIN\tMAX\tSTATUS\tEXECUTED")
	for _, r := range results {
		status := "pass"
		if !r.WithinThreshold {
			status = "fail"
		}
		fmt.Fprintf(w, "%s\t%.2f\t%v\t%v\t%s\t%s\n",
			r.CheckID,
			r.Value,
			r.MinThreshold,
			r.MaxThreshold,
			status,
			r.ExecutedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()
	return nil
}
