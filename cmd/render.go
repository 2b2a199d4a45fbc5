package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
	"github.com/JakeFAU/streamprice-crawler/internal/exchange"
	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
)

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func renderSnapshot(w io.Writer, snap crawler.Snapshot) {
	t := newTable(w, table.Row{"Country", "Name", "Plans", "Attempt", "Headless", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}, {Number: 4, Align: text.AlignRight}})
	for _, code := range snap.Codes() {
		cs := snap[code]
		headless := ""
		if cs.UsedHeadless {
			headless = "yes"
		}
		t.AppendRow(table.Row{code, cs.CountryName, len(cs.Plans), cs.Attempt, headless, cs.Error})
	}
	t.AppendFooter(table.Row{"", "total", snap.PlanCount()})
	t.Render()
}

func renderRecords(w io.Writer, records []pricing.PlanRecord) {
	t := newTable(w, table.Row{"Plan", "Original", "Group", "Bundle", "Price", "Currency", "Amount", "Monthly"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 7, Align: text.AlignRight}, {Number: 8, Align: text.AlignRight}})
	for _, r := range records {
		bundle := ""
		if r.Bundle {
			bundle = "yes"
		}
		t.AppendRow(table.Row{
			r.PlanName, r.OriginalName, string(r.PlanGroup), bundle, r.PriceText, r.Currency,
			money(r.PriceNumber), money(r.MonthlyPrice),
		})
	}
	t.Render()
}

func renderRanking(w io.Writer, rk exchange.Ranking, target string) {
	if rk.Description != "" {
		fmt.Fprintln(w, rk.Description)
	}
	t := newTable(w, table.Row{"#", "Country", "Plan", "Group", "Local price", "Monthly " + target})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 6, Align: text.AlignRight}})
	for _, r := range rk.Data {
		t.AppendRow(table.Row{r.Rank, r.CountryName, r.PlanName, string(r.PlanGroup), r.PriceText, moneyPtr(r.TargetMonthlyPrice)})
	}
	t.Render()
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func moneyPtr(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return money(*v)
}
