package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/shared"
)

// FXValidateOptions defines available flags for the fx validate command.
type FXValidateOptions struct {
	From       string
	To         string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// FXValidateSummary describes the JSON response for fx validate.
type FXValidateSummary struct {
	OK   bool              `json:"ok"`
	Gaps []FXValidationGap `json:"gaps"`
}

// FXValidationGap captures a date whose rate sheet cannot be resolved even
// through the fallback window.
type FXValidationGap struct {
	Date      string `json:"date"`
	DaysStale int    `json:"days_stale"`
}

// ValidateCommand checks that every date in the range resolves a rate sheet
// within the converter's fallback window. Exit code 10 signals gaps.
func (c *FXOpsCLI) ValidateCommand(ctx context.Context, opts FXValidateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	from, err := time.Parse(dateLayout, strings.TrimSpace(opts.From))
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx validate: invalid --from %q (expected YYYY-MM-DD)\n", opts.From)
		return 1
	}
	to, err := time.Parse(dateLayout, strings.TrimSpace(opts.To))
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx validate: invalid --to %q (expected YYYY-MM-DD)\n", opts.To)
		return 1
	}
	if to.Before(from) {
		fmt.Fprintln(opts.Stderr, "fx validate: --to must not precede --from")
		return 1
	}

	summary := FXValidateSummary{OK: true}
	for day := fx.DateKey(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		stale, err := c.staleness(ctx, day)
		if err != nil {
			fmt.Fprintf(opts.Stderr, "fx validate: %v\n", err)
			return 1
		}
		if stale < 0 {
			summary.OK = false
			summary.Gaps = append(summary.Gaps, FXValidationGap{
				Date:      day.Format(dateLayout),
				DaysStale: fx.MaxFallbackDays,
			})
		}
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			fmt.Fprintf(opts.Stderr, "fx validate: encode json: %v\n", err)
			return 1
		}
	} else {
		renderValidateHuman(opts.Stdout, summary)
	}
	if !summary.OK {
		return 10
	}
	return 0
}

// staleness walks the fallback window and returns how many days back the
// sheet was found, or -1 when the whole window is empty.
func (c *FXOpsCLI) staleness(ctx context.Context, day time.Time) (int, error) {
	for i := 0; i < fx.MaxFallbackDays; i++ {
		_, err := c.store.GetRates(ctx, day.AddDate(0, 0, -i))
		if err == nil {
			return i, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return 0, err
		}
	}
	return -1, nil
}

func renderValidateHuman(out io.Writer, summary FXValidateSummary) {
	if summary.OK {
		fmt.Fprintln(out, "fx validate: ok")
		return
	}
	fmt.Fprintf(out, "fx validate: %d unresolvable dates\n", len(summary.Gaps))
	for _, gap := range summary.Gaps {
		fmt.Fprintf(out, "  %s: no sheet within %d days\n", gap.Date, gap.DaysStale)
	}
}
