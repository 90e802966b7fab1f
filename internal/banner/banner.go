package banner

import (
	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(lipgloss.Color("#7D56F4")).
		Bold(true)

	ascii := `
              _ __                    __
  ____ _____ (_) /_  ___  ____  _____/ /_
 / __ '/ __ \/ / __ \/ _ \/ __ \/ ___/ __ \
/ /_/ / /_/ / / /_/ /  __/ / / / /__/ / / /
\__,_/ .___/_/_.___/\___/_/ /_/\___/_/ /_/
    /_/`

	return "\n" + style.Render(ascii) + "\n"
}
