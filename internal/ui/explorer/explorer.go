// Package explorer is a terminal browser over a finished schema comparison.
package explorer

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

// Input is everything the browser shows. The snapshots are optional and only
// used to print the full shape of tables present on one side.
type Input struct {
	Title     string
	DB1       string
	DB2       string
	Diff      *schema.SchemaDiff
	Snapshot1 *schema.Snapshot
	Snapshot2 *schema.Snapshot
}

type browser struct {
	in       Input
	showSame bool
	entries  []Entry

	list    *tview.List
	details *tview.TextView
	status  *tview.TextView
}

func newBrowser(in Input) *browser {
	b := &browser{
		in:      in,
		list:    tview.NewList().ShowSecondaryText(false),
		details: tview.NewTextView().SetDynamicColors(true).SetWrap(true),
		status:  tview.NewTextView().SetDynamicColors(true),
	}
	b.list.SetChangedFunc(func(index int, _, _ string, _ rune) {
		b.show(index)
	})
	b.refill()
	return b
}

func (b *browser) refill() {
	b.entries = BuildEntries(b.in.Diff, b.showSame)
	b.list.Clear()
	for _, e := range b.entries {
		b.list.AddItem(e.Label(), "", 0, nil)
	}

	stats := b.in.Diff.Stats()
	filter := "differences only"
	if b.showSame {
		filter = "all objects"
	}
	b.status.SetText(fmt.Sprintf("[::b]DB1[-:-:-] %s  [::b]DB2[-:-:-] %s\n%d differences, showing %s. Press '?' for help, 'q' to exit.",
		tview.Escape(b.in.DB1), tview.Escape(b.in.DB2), stats.Total(), filter))

	if len(b.entries) == 0 {
		b.details.SetText("Schemas are identical.")
		return
	}
	b.list.SetCurrentItem(0)
	b.show(0)
}

func (b *browser) show(index int) {
	if index < 0 || index >= len(b.entries) {
		return
	}
	b.details.SetText(Details(b.in, b.entries[index])).ScrollToBeginning()
}

func (b *browser) toggleSame() {
	b.showSame = !b.showSame
	b.refill()
}

// Run blocks until the user quits.
func Run(in Input) error {
	if in.Diff == nil {
		return errs.New(errs.ErrKindInvalidInput, "nothing to explore: the comparison has no diff")
	}
	if in.Title == "" {
		in.Title = "schemasync"
	}

	app := tview.NewApplication()
	b := newBrowser(in)
	pages := tview.NewPages()

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(b.list.SetBorder(true).SetTitle("Objects"), 40, 1, true).
			AddItem(b.details.SetBorder(true).SetTitle("Details"), 0, 3, false),
			0, 1, true).
		AddItem(b.status.SetBorder(true).SetTitle(in.Title), 4, 0, false)
	pages.AddPage("main", layout, true, true)

	closeHelp := func() {
		pages.RemovePage("help")
		app.SetFocus(b.list)
	}

	app.SetRoot(pages, true).
		SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
			if pages.HasPage("help") {
				if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyEnter || event.Rune() == '?' {
					closeHelp()
					return nil
				}
				return event
			}
			if event.Key() == tcell.KeyRune {
				switch event.Rune() {
				case 'q', 'Q':
					app.Stop()
					return nil
				case 's', 'S':
					b.toggleSame()
					return nil
				case '?':
					pages.AddPage("help", helpOverlay(), true, true)
					return nil
				}
			}
			return event
		})

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
