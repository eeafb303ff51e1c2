package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/standing-orders/internal/domain"
	"github.com/simaogato/standing-orders/internal/usecase/scheduler"
)

var orderColumns = []string{"id", "status", "frequency", "amount", "start_date", "end_date", "target_account_number", "description"}

func newTable(w io.Writer, headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	return table
}

// renderReport prints the run summary followed by one row per failure
func renderReport(w io.Writer, r *scheduler.ExecutionReport) {
	fmt.Fprintf(w, "Run for %s: %d candidates, %d executed, %d skipped, %d failed (%s)\n",
		domain.FormatDate(r.AsOf), r.Candidates, r.Executed, r.Skipped, len(r.Failures), r.Duration)

	if len(r.Failures) == 0 {
		return
	}

	table := newTable(w, []string{"Order", "Reason", "Message"})
	for _, f := range r.Failures {
		table.Append([]string{f.OrderID.String(), string(f.Reason), f.Message})
	}
	table.Render()
}

// renderRows prints the given columns of each struct, one row per item
func renderRows(w io.Writer, columns []string, items []*structpb.Struct) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}

	table := newTable(w, columns)
	for _, item := range items {
		row := make([]string, 0, len(columns))
		for _, col := range columns {
			row = append(row, cell(item.GetFields()[col]))
		}
		table.Append(row)
	}
	table.Render()
}

// renderRecord prints one struct as a two-column key/value table
func renderRecord(w io.Writer, columns []string, item *structpb.Struct) {
	table := newTable(w, []string{"Field", "Value"})
	for _, col := range columns {
		table.Append([]string{col, cell(item.GetFields()[col])})
	}
	table.Render()
}

func cell(v *structpb.Value) string {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue)
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
	}
	return ""
}
