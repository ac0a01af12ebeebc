package cli

import (
	"errors"
	"fmt"
	"io"

	"postsync/internal/core/domain"
)

func printRun(w io.Writer, run domain.Run) {
	fmt.Fprintln(w, "=== Scrape Started ===")
	fmt.Fprintf(w, "Run ID:       %s\n", run.ID)
	fmt.Fprintf(w, "Status:       %s\n", run.Status)
	fmt.Fprintf(w, "Console:      %s\n", run.ConsoleURL)
	fmt.Fprintf(w, "Check with:   postsync status %s\n", run.ID)
}

// printResult prints a summary of a workflow invocation. err is the error
// returned with res, used to add a resume hint for pending runs.
func printResult(w io.Writer, res *domain.WorkflowResult, err error) {
	if res == nil {
		return
	}
	fmt.Fprintln(w, "=== Workflow Summary ===")
	fmt.Fprintf(w, "Run ID:       %s\n", res.RunID)
	fmt.Fprintf(w, "State:        %s\n", res.State)
	fmt.Fprintf(w, "Status:       %s\n", res.Status)
	fmt.Fprintf(w, "Attempts:     %d\n", res.Attempts)
	fmt.Fprintf(w, "Success:      %t\n", res.Success)
	if res.Message != "" {
		fmt.Fprintf(w, "Message:      %s\n", res.Message)
	}
	if res.ErrorDetail != "" {
		fmt.Fprintf(w, "Error:        %s\n", res.ErrorDetail)
	}

	if p := res.Persist; p.ArtifactURL != "" {
		fmt.Fprintf(w, "Rows:         %d\n", p.Processed)
		fmt.Fprintf(w, "Inserted:     %d\n", p.Inserted)
		fmt.Fprintf(w, "Skipped:      %d\n", p.Skipped)
		fmt.Fprintf(w, "CSV:          %s\n", p.ArtifactURL)
		fmt.Fprintf(w, "Fallback:     %t\n", p.UsedFallback)
		fmt.Fprintf(w, "Spreadsheet:  %s\n", p.SheetsMessage)
	}
	if !res.CompletedAt.IsZero() {
		fmt.Fprintf(w, "Completed At: %s\n", res.CompletedAt.Format("2006-01-02 15:04:05 UTC"))
	}
	if errors.Is(err, domain.ErrJobTimedOut) {
		fmt.Fprintf(w, "Resume with:  postsync workflow --run-id %s\n", res.RunID)
	}
}
