package cli

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/shared"
)

// FXBackfillMode enumerates supported execution strategies.
type FXBackfillMode string

const (
	// FXBackfillModeDry previews gaps without applying changes.
	FXBackfillModeDry FXBackfillMode = "dry"
	// FXBackfillModeApply persists rates after confirmation.
	FXBackfillModeApply FXBackfillMode = "apply"
)

const dateLayout = "2006-01-02"

// FXBackfillOptions configures the backfill command execution.
type FXBackfillOptions struct {
	From         string
	To           string
	Mode         FXBackfillMode
	Source       string
	SourceReader io.Reader
	JSONOutput   bool
	Stdout       io.Writer
	Stderr       io.Writer
	Stdin        io.Reader
	Confirm      func(io.Reader, io.Writer) (bool, error)
}

// FXBackfillSummary captures the structured reporting outcome.
type FXBackfillSummary struct {
	Mode       FXBackfillMode        `json:"mode"`
	From       string                `json:"from"`
	To         string                `json:"to"`
	Missing    []string              `json:"missing_dates"`
	Candidates []FXBackfillCandidate `json:"candidates"`
	Applied    []FXBackfillCandidate `json:"applied,omitempty"`
}

// FXBackfillCandidate summarises one rate sheet sourced from CSV.
type FXBackfillCandidate struct {
	Date  string            `json:"date"`
	Rates map[string]string `json:"rates"`
}

// BackfillCommand executes the fx backfill workflow. The CSV source carries
// date, currency, rate rows; rates are RUB per unit as published.
func (c *FXOpsCLI) BackfillCommand(ctx context.Context, opts FXBackfillOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Mode == "" {
		opts.Mode = FXBackfillModeDry
	}
	mode := FXBackfillMode(strings.ToLower(string(opts.Mode)))
	switch mode {
	case FXBackfillModeDry, FXBackfillModeApply:
	default:
		fmt.Fprintf(opts.Stderr, "fx backfill: invalid mode %q (expected dry or apply)\n", opts.Mode)
		return 1
	}
	from, err := time.Parse(dateLayout, strings.TrimSpace(opts.From))
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx backfill: invalid --from %q (expected YYYY-MM-DD)\n", opts.From)
		return 1
	}
	to, err := time.Parse(dateLayout, strings.TrimSpace(opts.To))
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx backfill: invalid --to %q (expected YYYY-MM-DD)\n", opts.To)
		return 1
	}
	if to.Before(from) {
		fmt.Fprintln(opts.Stderr, "fx backfill: --to must not precede --from")
		return 1
	}

	reader := opts.SourceReader
	if reader == nil {
		if opts.Source == "" || opts.Source == "-" {
			reader = opts.Stdin
		} else {
			f, err := os.Open(opts.Source)
			if err != nil {
				fmt.Fprintf(opts.Stderr, "fx backfill: open source: %v\n", err)
				return 1
			}
			defer f.Close()
			reader = f
		}
	}

	sheets, err := parseRateCSV(reader)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx backfill: %v\n", err)
		return 1
	}

	missing, err := c.missingDates(ctx, from, to)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "fx backfill: scan store: %v\n", err)
		return 1
	}

	summary := FXBackfillSummary{
		Mode:    mode,
		From:    from.Format(dateLayout),
		To:      to.Format(dateLayout),
		Missing: missing,
	}
	for _, date := range missing {
		set, ok := sheets[date]
		if !ok {
			continue
		}
		summary.Candidates = append(summary.Candidates, candidateFor(set))
	}

	if mode == FXBackfillModeApply && len(summary.Candidates) > 0 {
		confirm := opts.Confirm
		if confirm == nil {
			confirm = promptConfirm
		}
		ok, err := confirm(opts.Stdin, opts.Stdout)
		if err != nil {
			fmt.Fprintf(opts.Stderr, "fx backfill: confirm: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Fprintln(opts.Stdout, "fx backfill: aborted")
			return 0
		}
		for _, cand := range summary.Candidates {
			if err := c.store.SaveRates(ctx, sheets[cand.Date]); err != nil {
				fmt.Fprintf(opts.Stderr, "fx backfill: save %s: %v\n", cand.Date, err)
				return 1
			}
			summary.Applied = append(summary.Applied, cand)
		}
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			fmt.Fprintf(opts.Stderr, "fx backfill: encode json: %v\n", err)
			return 1
		}
	} else {
		renderBackfillHuman(opts.Stdout, summary)
	}
	return 0
}

func (c *FXOpsCLI) missingDates(ctx context.Context, from, to time.Time) ([]string, error) {
	var missing []string
	for day := fx.DateKey(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		_, err := c.store.GetRates(ctx, day)
		if err == nil {
			continue
		}
		if errors.Is(err, shared.ErrNotFound) {
			missing = append(missing, day.Format(dateLayout))
			continue
		}
		return nil, err
	}
	return missing, nil
}

func parseRateCSV(r io.Reader) (map[string]fx.RateSet, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.TrimLeadingSpace = true

	sheets := make(map[string]fx.RateSet)
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++
		if line == 1 && strings.EqualFold(record[0], "date") {
			continue
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("line %d: expected date,currency,rate", line)
		}
		date, err := time.Parse(dateLayout, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q", line, record[0])
		}
		currency, err := fx.ParseCurrency(record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", line, err)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(record[2]))
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("line %d: invalid rate %q", line, record[2])
		}

		key := date.Format(dateLayout)
		set, ok := sheets[key]
		if !ok {
			set = fx.RateSet{Date: fx.DateKey(date), Rates: make(map[fx.Currency]decimal.Decimal)}
		}
		set.Rates[currency] = rate
		sheets[key] = set
	}
	if len(sheets) == 0 {
		return nil, errors.New("source carries no rate rows")
	}
	return sheets, nil
}

func candidateFor(set fx.RateSet) FXBackfillCandidate {
	cand := FXBackfillCandidate{
		Date:  set.Date.Format(dateLayout),
		Rates: make(map[string]string, len(set.Rates)),
	}
	for code, rate := range set.Rates {
		cand.Rates[string(code)] = rate.String()
	}
	return cand
}

func promptConfirm(in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, "apply rates? [y/N]: ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false, scanner.Err()
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}

func renderBackfillHuman(out io.Writer, summary FXBackfillSummary) {
	fmt.Fprintf(out, "fx backfill %s..%s (%s)\n", summary.From, summary.To, summary.Mode)
	if len(summary.Missing) == 0 {
		fmt.Fprintln(out, "no missing dates")
		return
	}
	sort.Strings(summary.Missing)
	fmt.Fprintf(out, "missing dates: %s\n", strings.Join(summary.Missing, ", "))
	for _, cand := range summary.Candidates {
		fmt.Fprintf(out, "  candidate %s: %d rates\n", cand.Date, len(cand.Rates))
	}
	for _, applied := range summary.Applied {
		fmt.Fprintf(out, "  applied %s\n", applied.Date)
	}
}
