package desktop

import (
	"strings"

	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

func formRow(label string, control fyne.CanvasObject) fyne.CanvasObject {
	title := widget.NewLabel(label)
	title.Alignment = fyne.TextAlignLeading
	return container.NewVBox(title, control)
}

var engineLabels = []string{"PostgreSQL", "MySQL", "MongoDB"}

func normalizeEngineSelection(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "postgresql", "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	case "mongodb", "mongo":
		return "mongo"
	default:
		return ""
	}
}

func renderEngine(dbType string) string {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "mongo", "mongodb":
		return "MongoDB"
	case "mysql":
		return "MySQL"
	default:
		return "PostgreSQL"
	}
}

func defaultPort(engine string) string {
	switch engine {
	case "mysql":
		return "3306"
	case "mongo":
		return "27017"
	default:
		return "5432"
	}
}
