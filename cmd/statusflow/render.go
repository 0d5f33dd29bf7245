package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/goliatone/go-statusflow"
	"github.com/goliatone/go-statusflow/catalog"
	"github.com/goliatone/go-statusflow/flow"
)

const timeLayout = "2006-01-02 15:04"

var (
	reachedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	activeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	pendingStyle  = lipgloss.NewStyle().Faint(true)
	actionStyle   = lipgloss.NewStyle().PaddingLeft(4)
	disabledStyle = lipgloss.NewStyle().PaddingLeft(4).Strikethrough(true)
)

func renderWorkflow(wf catalog.Workflow, available []flow.AvailableAction) string {
	if !wf.Available {
		return pendingStyle.Render("no workflow available for this item")
	}

	var b strings.Builder
	for _, step := range wf.Steps {
		marker := "○"
		style := pendingStyle
		switch {
		case step.Active:
			marker, style = "●", activeStyle
		case step.Reached:
			marker, style = "●", reachedStyle
		}
		line := fmt.Sprintf("%s %s", marker, step.Label)
		if !step.DisplayOnly {
			line += fmt.Sprintf(" (%s)", step.State)
		}
		if step.VisitedAt != nil {
			line += "  " + step.VisitedAt.Format(timeLayout)
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")

		if !step.Active || step.Actions == nil {
			continue
		}
		if step.Actions.Hint != "" {
			b.WriteString(actionStyle.Render("ⓘ " + step.Actions.Hint))
			b.WriteString("\n")
		}
		for _, a := range annotate(step.Actions, available) {
			if a.Enabled {
				b.WriteString(actionStyle.Render(fmt.Sprintf("▸ %s [%s]", a.Label, a.ID)))
			} else {
				b.WriteString(disabledStyle.Render(fmt.Sprintf("▸ %s [%s]", a.Label, a.ID)))
				b.WriteString(fmt.Sprintf(" blocked by %s", strings.Join(a.Blocked, ", ")))
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// annotate falls back to enabled actions when no guard results are known.
func annotate(desc *flow.ActionDescriptor, available []flow.AvailableAction) []flow.AvailableAction {
	if len(available) > 0 {
		return available
	}
	out := make([]flow.AvailableAction, 0, len(desc.Actions))
	for _, a := range desc.Actions {
		out = append(out, flow.AvailableAction{Action: a, Enabled: true})
	}
	return out
}

func renderStates(g *catalog.Graph, typ *statusflow.ItemType) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := table.Row{"Key", "Code", "Label", "Allowed types", "Nexts"}
	if typ != nil {
		header = append(header, "Eligible", "Terminal")
	}
	tw.AppendHeader(header)

	for _, st := range g.States() {
		node, err := g.Lookup(st)
		if err != nil {
			continue
		}
		types := make([]string, 0, node.AllowedTypes.Cardinality())
		for _, t := range g.Types() {
			if node.AllowedTypes.Contains(t) {
				types = append(types, strconv.Itoa(int(t)))
			}
		}
		nexts := make([]string, 0, len(node.Nexts))
		for _, n := range node.Nexts {
			nexts = append(nexts, n.String())
		}
		row := table.Row{st.String(), int(st), st.Label(), strings.Join(types, ","), strings.Join(nexts, "\n")}
		if typ != nil {
			row = append(row, yesNo(g.IsEligible(st, *typ)), yesNo(g.Terminal(st, *typ)))
		}
		tw.AppendRow(row)
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "-"
}
