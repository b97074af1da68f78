package format

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"acplog/internal/model"
)

const cellWidth = 60

// WriteToolCalls renders every tool call in events as a table.
func WriteToolCalls(w io.Writer, events []model.Event) error {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: cellWidth},
		{Number: 5, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: cellWidth},
	})
	tw.AppendHeader(table.Row{"ID", "Tool", "Status", "Arguments", "Result"})

	var n int
	for _, ev := range events {
		call, ok := ev.(model.ToolCallEvent)
		if !ok {
			continue
		}
		n++
		args := ""
		if len(call.Args) > 0 {
			data, err := json.Marshal(call.Args)
			if err != nil {
				return fmt.Errorf("encode tool arguments: %w", err)
			}
			args = string(data)
		}
		result := ""
		if call.Result != nil {
			result = escapeNewlines(ResultText(call.Result))
		}
		tw.AppendRow(table.Row{call.ID, call.Tool, string(call.Status), args, result})
	}
	if n == 0 {
		tw.AppendRow(table.Row{"-", "(no tool calls)", "-", "-", "-"})
	}

	_ = tw.Render()
	return nil
}

// WritePlan renders the entries of a plan snapshot as a table.
func WritePlan(w io.Writer, plan model.PlanEvent) error {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: cellWidth},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
	})
	tw.AppendHeader(table.Row{"#", "", "Entry", "Status"})
	for i, entry := range plan.Entries {
		tw.AppendRow(table.Row{i + 1, PlanMarker(entry.Status), entry.Title, string(entry.Status)})
	}
	if len(plan.Entries) == 0 {
		tw.AppendRow(table.Row{"-", "-", "(empty plan)", "-"})
	}

	_ = tw.Render()
	return nil
}

// WriteTranscriptJSONL writes one type-tagged JSON object per event.
func WriteTranscriptJSONL(w io.Writer, events []model.Event) error {
	for _, ev := range events {
		data, err := model.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return err
		}
	}
	return nil
}
