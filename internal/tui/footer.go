package tui

import "fmt"

// renderFooter renders the key binding help footer at full terminal width.
// When app.showHelp is true, shows all key bindings; otherwise a brief hint.
func renderFooter(app *App) string {
	width := app.width
	if width <= 0 {
		width = 80
	}
	text := "? for help"
	if app.showHelp {
		text = helpText
	} else if app.lastSnapshot != nil {
		text = fmt.Sprintf("snapshot #%d taken at %s  ·  ? for help",
			app.lastSnapshot.ID, app.lastSnapshot.Timestamp.Format("15:04:05"))
	}
	return StyleDim.Width(width).Render(text)
}
