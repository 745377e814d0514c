package services

import (
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const reportTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
<h2>Expense summary {{.PeriodStart}} to {{.PeriodEnd}}</h2>
<p>Hi {{.Name}}, here is what you spent in this period.</p>

<h3>Total</h3>
<p><strong>{{.Total}}</strong></p>

<h3>By type</h3>
<table>
<tr><td>Fixed</td><td align="right">{{.Fixed}}</td></tr>
<tr><td>Variable</td><td align="right">{{.Variable}}</td></tr>
</table>

<h3>Needs and wants</h3>
<table>
<tr><td>Need</td><td align="right">{{.Need}}</td></tr>
<tr><td>Want</td><td align="right">{{.Want}}</td></tr>
</table>

<h3>Over time</h3>
<table>
{{range .Buckets}}<tr><td>{{.Label}}</td><td align="right">{{.Amount}}</td></tr>
{{end}}</table>

<h3>By category</h3>
<table>
{{range .Categories}}<tr><td>{{.Label}}</td><td align="right">{{.Amount}}</td></tr>
{{end}}</table>
</body>
</html>
`

var reportTmpl = template.Must(template.New("report_email").Parse(reportTemplate))

type reportLine struct {
	Label  string
	Amount string
}

type reportView struct {
	Name        string
	PeriodStart string
	PeriodEnd   string
	Total       string
	Fixed       string
	Variable    string
	Need        string
	Want        string
	Buckets     []reportLine
	Categories  []reportLine
}

// renderReportBody formats an expense aggregate as the HTML email body.
// Buckets are listed chronologically, categories descending by amount.
func renderReportBody(user core.User, dateRange core.DateRange, agg core.Aggregate) (string, error) {
	name := user.DisplayName
	if name == "" {
		name = user.Email
	}

	view := reportView{
		Name:        name,
		PeriodStart: dateRange.Start.String(),
		PeriodEnd:   dateRange.End.String(),
		Total:       formatAmount(agg.Total),
		Fixed:       formatAmount(agg.ByType.Fixed),
		Variable:    formatAmount(agg.ByType.Variable),
		Buckets:     sortedBuckets(agg.ByBucket),
		Categories:  sortedCategories(agg.ByCategory),
	}
	if agg.ByNeedOrWant != nil {
		view.Need = formatAmount(agg.ByNeedOrWant.Need)
		view.Want = formatAmount(agg.ByNeedOrWant.Want)
	}

	var b strings.Builder
	if err := reportTmpl.Execute(&b, view); err != nil {
		return "", fmt.Errorf("execute report template: %w", err)
	}
	return b.String(), nil
}

func sortedBuckets(buckets map[string]decimal.Decimal) []reportLine {
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]reportLine, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, reportLine{Label: k, Amount: formatAmount(buckets[k])})
	}
	return lines
}

func sortedCategories(categories map[string]decimal.Decimal) []reportLine {
	type entry struct {
		name   string
		amount decimal.Decimal
	}
	entries := make([]entry, 0, len(categories))
	for name, amount := range categories {
		entries = append(entries, entry{name, amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].amount.Equal(entries[j].amount) {
			return entries[i].amount.GreaterThan(entries[j].amount)
		}
		return entries[i].name < entries[j].name
	})

	lines := make([]reportLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, reportLine{Label: e.name, Amount: formatAmount(e.amount)})
	}
	return lines
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
