package explorer

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

type keyBinding struct {
	keys   string
	action string
}

var bindings = []keyBinding{
	{"up/down", "move through objects"},
	{"s", "show or hide identical objects"},
	{"?", "this help"},
	{"q", "quit"},
}

var legend = []struct {
	status EntryStatus
	label  string
}{
	{StatusOnlyDB1, "only in DB1"},
	{StatusOnlyDB2, "only in DB2"},
	{StatusChanged, "changed"},
	{StatusSame, "identical"},
}

// helpText lists the key bindings, then the list markers in their colours.
func helpText() string {
	var b strings.Builder
	b.WriteString("[::b]Keys[-:-:-]\n")
	for _, k := range bindings {
		fmt.Fprintf(&b, "  %-9s %s\n", k.keys, k.action)
	}
	b.WriteByte('\n')
	markers := make([]string, len(legend))
	for i, l := range legend {
		markers[i] = fmt.Sprintf("[%s]%s[-] %s", l.status.color(), l.status.marker(), l.label)
	}
	b.WriteString(strings.Join(markers, "   "))
	return b.String()
}

// helpOverlay centres the help panel over the browser, tall enough for every
// binding plus the legend and border.
func helpOverlay() tview.Primitive {
	text := helpText()
	view := tview.NewTextView().SetDynamicColors(true).SetText(text)
	view.SetBorder(true).SetTitle("Help")

	width := 0
	for _, line := range strings.Split(text, "\n") {
		if w := tview.TaggedStringWidth(line); w > width {
			width = w
		}
	}
	height := strings.Count(text, "\n") + 3

	return tview.NewGrid().
		SetRows(0, height, 0).
		SetColumns(0, width+4, 0).
		AddItem(view, 1, 1, 1, 1, 0, 0, true)
}
