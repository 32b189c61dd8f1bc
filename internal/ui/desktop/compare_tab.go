package desktop

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/kadirbelkuyu/schemasync/internal/app"
	"github.com/kadirbelkuyu/schemasync/internal/apply"
	"github.com/kadirbelkuyu/schemasync/internal/profiles"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

var directionLabels = map[string]schema.Direction{
	"Database 1 → Database 2": schema.AtoB,
	"Database 2 → Database 1": schema.BtoA,
}

type compareView struct {
	app *App

	content fyne.CanvasObject

	profileSelect   *widget.Select
	directionSelect *widget.Select

	compareRun *widget.Button
	syncRun    *widget.Button
	applyRun   *widget.Button
	saveDDL    *widget.Button

	summary   *widget.Label
	report    *widget.Entry
	ddlOutput *widget.Entry
	logOutput *widget.Entry

	lastSync *app.SyncResult
}

func newCompareView(a *App) *compareView {
	v := &compareView{app: a}

	v.profileSelect = widget.NewSelect([]string{}, nil)
	v.directionSelect = widget.NewSelect([]string{"Database 1 → Database 2", "Database 2 → Database 1"}, nil)
	v.directionSelect.SetSelected("Database 1 → Database 2")

	v.compareRun = widget.NewButtonWithIcon("Compare", theme.SearchIcon(), func() {
		v.handleCompare()
	})
	v.syncRun = widget.NewButtonWithIcon("Generate DDL", theme.DocumentCreateIcon(), func() {
		v.handleSync()
	})
	v.applyRun = widget.NewButtonWithIcon("Apply to target", theme.MediaPlayIcon(), func() {
		v.handleApply()
	})
	v.applyRun.Importance = widget.DangerImportance
	v.applyRun.Disable()
	v.saveDDL = widget.NewButtonWithIcon("Save DDL…", theme.DocumentSaveIcon(), func() {
		v.handleSaveDDL()
	})
	v.saveDDL.Disable()

	v.summary = widget.NewLabel("Run a comparison to see the differences.")
	v.summary.Wrapping = fyne.TextWrapWord

	v.report = readOnlyEntry(12)
	v.ddlOutput = readOnlyEntry(10)
	v.logOutput = readOnlyEntry(5)

	controls := container.NewVBox(
		container.NewGridWithColumns(2,
			formRow("Profile", v.profileSelect),
			formRow("Sync direction", v.directionSelect),
		),
		container.NewGridWithColumns(4, v.compareRun, v.syncRun, v.applyRun, v.saveDDL),
	)

	v.content = container.NewVScroll(container.NewVBox(
		widget.NewCard("Compare & Sync", "Inspect both databases of a profile, review the differences and generate additive DDL.", controls),
		widget.NewCard("Summary", "", v.summary),
		widget.NewCard("Differences", "", container.NewStack(v.report)),
		widget.NewCard("DDL", "", container.NewStack(v.ddlOutput)),
		widget.NewCard("Activity Log", "", container.NewStack(v.logOutput)),
	))
	return v
}

func readOnlyEntry(rows int) *widget.Entry {
	entry := widget.NewMultiLineEntry()
	entry.SetMinRowsVisible(rows)
	entry.TextStyle = fyne.TextStyle{Monospace: true}
	entry.Disable()
	return entry
}

func (v *compareView) canvas() fyne.CanvasObject {
	return v.content
}

func (v *compareView) updateProfiles(list []profiles.Profile) {
	options := make([]string, len(list))
	for i, p := range list {
		options[i] = p.Name
	}
	v.profileSelect.Options = options
	v.profileSelect.Refresh()
}

func (v *compareView) selectedPair() (profiles.Pair, bool) {
	name := v.profileSelect.Selected
	if name == "" {
		dialog.ShowInformation("Select profile", "Choose the profile to compare.", v.app.window)
		return profiles.Pair{}, false
	}
	pair, err := v.app.manager.Get(context.Background(), name)
	if err != nil {
		dialog.ShowError(err, v.app.window)
		return profiles.Pair{}, false
	}
	return pair, true
}

func (v *compareView) service() *app.Service {
	if v.app.service == nil {
		v.app.service = app.NewService(nil, v.app.logger)
	}
	return v.app.service
}

func (v *compareView) handleCompare() {
	pair, ok := v.selectedPair()
	if !ok {
		return
	}
	svc := v.service()

	v.execute("Compare", v.compareRun, func(ctx context.Context) (func(), error) {
		cmp, err := svc.Compare(ctx, app.LiveSource(pair.DB1), app.LiveSource(pair.DB2))
		if err != nil {
			return nil, err
		}
		return func() {
			v.showComparison(cmp)
		}, nil
	})
}

func (v *compareView) handleSync() {
	pair, ok := v.selectedPair()
	if !ok {
		return
	}
	dir, ok := directionLabels[v.directionSelect.Selected]
	if !ok {
		dialog.ShowInformation("Select direction", "Choose which database receives the changes.", v.app.window)
		return
	}
	svc := v.service()

	v.execute("DDL generation", v.syncRun, func(ctx context.Context) (func(), error) {
		res, err := svc.Sync(ctx, app.LiveSource(pair.DB1), app.LiveSource(pair.DB2), dir)
		if err != nil {
			return nil, err
		}
		return func() {
			v.showComparison(res.Comparison)
			v.showStatements(res)
		}, nil
	})
}

func (v *compareView) handleApply() {
	res := v.lastSync
	if res == nil {
		return
	}
	executable := len(apply.Executable(res.Statements))
	if executable == 0 {
		dialog.ShowInformation("Nothing to apply", "The target already matches the source.", v.app.window)
		return
	}

	msg := fmt.Sprintf("Execute %d statement(s) against %s?\n\nPostgreSQL runs them in one transaction. MySQL commits each DDL statement on its own.",
		executable, res.Target.String())
	dialog.ShowConfirm("Apply DDL", msg, func(ok bool) {
		if !ok {
			return
		}
		svc := v.service()
		v.execute("Apply", v.applyRun, func(ctx context.Context) (func(), error) {
			out, err := svc.Apply(ctx, res)
			if err != nil {
				return nil, err
			}
			return func() {
				v.appendLog("Applied %d statement(s) in %s.", out.Executed, out.Duration.Round(time.Millisecond))
			}, nil
		})
	}, v.app.window)
}

func (v *compareView) handleSaveDDL() {
	if v.lastSync == nil {
		return
	}
	text := v.ddlOutput.Text
	dlg := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()
		if _, err := writer.Write([]byte(text)); err != nil {
			dialog.ShowError(err, v.app.window)
			return
		}
		v.appendLog("DDL saved to %s", writer.URI().Path())
	}, v.app.window)
	dlg.SetFileName(fmt.Sprintf("schemasync-%s.sql", time.Now().Format("20060102_150405")))
	dlg.SetFilter(storage.NewExtensionFileFilter([]string{".sql"}))
	if wd, err := os.Getwd(); err == nil {
		if uri, err := storage.ListerForURI(storage.NewFileURI(wd)); err == nil {
			dlg.SetLocation(uri)
		}
	}
	dlg.Show()
}

func (v *compareView) showComparison(cmp *app.Comparison) {
	var buf bytes.Buffer
	app.WriteComparison(&buf, cmp)
	v.report.SetText(buf.String())
	v.summary.SetText(fmt.Sprintf("%s\n%s vs %s (%s)", app.SummaryLine(cmp.Stats), cmp.DB1, cmp.DB2,
		cmp.Duration.Round(time.Millisecond)))
}

func (v *compareView) showStatements(res *app.SyncResult) {
	v.lastSync = res
	v.ddlOutput.SetText(renderStatements(res))
	v.saveDDL.Enable()
	if res.Target.Config != nil {
		v.applyRun.Enable()
	}
}

func renderStatements(res *app.SyncResult) string {
	var buf bytes.Buffer
	app.WriteStatements(&buf, res)
	return strings.TrimRight(buf.String(), "\n") + "\n"
}

// execute runs task off the UI goroutine; the returned callback updates the
// widgets once the task succeeds.
func (v *compareView) execute(action string, button *widget.Button, task func(ctx context.Context) (func(), error)) {
	button.Disable()
	v.appendLog("%s started.", action)
	go func() {
		done, err := task(context.Background())
		v.app.runOnUI(func() {
			button.Enable()
			if err != nil {
				dialog.ShowError(err, v.app.window)
				v.appendLog("%s failed: %v", action, err)
				return
			}
			if done != nil {
				done()
			}
			v.appendLog("%s completed successfully.", action)
		})
	}()
}

func (v *compareView) appendLog(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	entry := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message)
	if strings.TrimSpace(v.logOutput.Text) == "" {
		v.logOutput.SetText(entry)
	} else {
		v.logOutput.SetText(v.logOutput.Text + "\n" + entry)
	}
	v.app.setStatus(message)
}
