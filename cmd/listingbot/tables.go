package main

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/theeshop/listingbot/internal/product"
	"github.com/theeshop/listingbot/internal/types"
	"github.com/theeshop/listingbot/internal/utils"
	"github.com/theeshop/listingbot/internal/workflow"
)

const timeLayout = "2006-01-02 15:04:05"

func printOutcome(w io.Writer, out workflow.Outcome, in product.Input) {
	rec := out.Record(in)
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	_ = table.Append([]string{"run", rec.RunID})
	_ = table.Append([]string{"account", rec.AccountKey})
	_ = table.Append([]string{"status", string(rec.Status)})
	_ = table.Append([]string{"states", strings.Join(rec.States, " > ")})
	if len(out.Skipped) > 0 {
		skipped := make([]string, 0, len(out.Skipped))
		for _, s := range out.Skipped {
			skipped = append(skipped, string(s))
		}
		_ = table.Append([]string{"skipped", strings.Join(skipped, ", ")})
	}
	if rec.FailedStep != "" {
		_ = table.Append([]string{"failed step", rec.FailedStep})
	}
	if rec.Artifact != "" {
		_ = table.Append([]string{"screenshot", rec.Artifact})
	}
	_ = table.Append([]string{"duration", rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond).String()})
	_ = table.Render()
}

func printAccounts(w io.Writer, accounts []types.Account) {
	table := tablewriter.NewWriter(w)
	table.Header("Account", "Profile", "Created", "Last used")
	for _, a := range accounts {
		_ = table.Append([]string{a.Key, a.ProfileDir, formatTime(a.CreatedAt), formatTime(a.LastUsedAt)})
	}
	_ = table.Render()
}

func printRuns(w io.Writer, runs []types.RunRecord) {
	table := tablewriter.NewWriter(w)
	table.Header("Run", "Account", "Category", "Status", "Failed step", "Started")
	var done int
	for _, r := range runs {
		if r.Status == types.RunStatusDone {
			done++
		}
		_ = table.Append([]string{r.RunID, r.AccountKey, utils.ShortenString(r.Category, 30), string(r.Status), r.FailedStep, formatTime(r.StartedAt)})
	}
	table.Footer("", "", "", "done", strconv.Itoa(done)+"/"+strconv.Itoa(len(runs)), "")
	_ = table.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
