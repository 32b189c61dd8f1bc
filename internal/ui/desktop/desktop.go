package desktop

import (
	"context"
	"fmt"

	fyne "fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/kadirbelkuyu/schemasync/internal/app"
	"github.com/kadirbelkuyu/schemasync/internal/profiles"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

// Run starts the desktop studio and blocks until the window is closed.
func Run(manager *profiles.Manager, service *app.Service, log *logger.Logger) error {
	if log == nil {
		log = logger.NewLogger(false)
	}
	studio := &App{
		manager: manager,
		service: service,
		logger:  log,
	}
	return studio.Run()
}

// App represents the desktop UI controller.
type App struct {
	manager *profiles.Manager
	service *app.Service
	logger  *logger.Logger

	app    fyne.App
	window fyne.Window

	status *widget.Label
	tabs   *container.AppTabs

	profileItems       []profiles.Profile
	profileList        *widget.List
	profileSelectedIdx int
	pairEditor         *pairEditor

	compare *compareView
}

// Run bootstraps the fyne application and blocks until the window is closed.
func (a *App) Run() error {
	a.app = fyneapp.NewWithID("github.com/kadirbelkuyu/schemasync/desktop")
	a.window = a.app.NewWindow("schemasync Studio")
	a.window.Resize(fyne.NewSize(1280, 800))

	a.window.SetContent(a.buildShell())
	a.refreshProfiles()
	a.window.ShowAndRun()
	return nil
}

func (a *App) buildShell() fyne.CanvasObject {
	header := a.buildHeader()
	status := a.buildStatusBar()

	a.profileSelectedIdx = -1
	a.pairEditor = newPairEditor(a)
	a.compare = newCompareView(a)

	a.tabs = container.NewAppTabs(
		container.NewTabItemWithIcon("Profiles", theme.AccountIcon(), a.buildProfilesTab()),
		container.NewTabItemWithIcon("Compare & Sync", theme.ViewRefreshIcon(), a.compare.canvas()),
	)
	a.tabs.SetTabLocation(container.TabLocationLeading)

	return container.NewBorder(header, status, nil, nil, a.tabs)
}

func (a *App) buildHeader() fyne.CanvasObject {
	title := widget.NewLabelWithStyle("schemasync Studio", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	subtitle := widget.NewLabel("Compare PostgreSQL, MySQL and MongoDB schemas and generate the DDL that closes the gap.")
	subtitle.Wrapping = fyne.TextWrapWord

	return container.NewVBox(title, subtitle, widget.NewSeparator())
}

func (a *App) buildStatusBar() fyne.CanvasObject {
	a.status = widget.NewLabel("Ready.")
	return container.NewBorder(nil, nil, widget.NewLabel("Status"), nil, a.status)
}

func (a *App) setStatus(format string, args ...interface{}) {
	if a.status == nil {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	a.runOnUI(func() {
		a.status.SetText(msg)
	})
}

func (a *App) runOnUI(fn func()) {
	if fn == nil {
		return
	}
	if a.app == nil {
		fn()
		return
	}
	fyne.Do(fn)
}

func (a *App) refreshProfiles() {
	list, err := a.manager.List(context.Background())
	if err != nil {
		a.setStatus("Failed to load profiles: %v", err)
		return
	}
	a.profileItems = list
	if a.profileList != nil {
		a.profileList.Refresh()
		if len(a.profileItems) == 0 {
			a.profileList.UnselectAll()
		}
	}
	if a.compare != nil {
		a.compare.updateProfiles(list)
	}
	if len(list) == 0 && a.pairEditor != nil {
		a.pairEditor.reset("", nil)
	}
}
