package cmd

import (
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/pb33f/mirrorlog/tui"
)

var bannerLines = []string{
	"@@@@@@@@@@   @@@  @@@@@@@   @@@@@@@    @@@@@@   @@@@@@@   @@@        @@@@@@    @@@@@@@@",
	"@@! @@! @@!  @@!  @@!  @@@  @@!  @@@  @@!  @@@  @@!  @@@  @@!       @@!  @@@  !@@      ",
	"@!! !!@ @!@  !!@  @!@!!@!   @!@!!@!   @!@  !@!  @!@!!@!   @!!       @!@  !@!  !@! @!@!@",
	"!!:     !!:  !!:  !!: :!!   !!: :!!   !!:  !!!  !!: :!!   !!:       !!:  !!!  :!!   !!:",
	" :      :    :     :   : :   :   : :   : :. :    :   : :  : ::.: :   : :. :    :: :: : ",
}

// RenderBanner returns the styled banner shown by the version command
func RenderBanner() string {
	bannerStyle := lipgloss.NewStyle().
		Foreground(tui.RGBPink).
		Bold(true)

	subtitleStyle := lipgloss.NewStyle().
		Foreground(tui.RGBBlue).
		Italic(true)

	containerStyle := lipgloss.NewStyle().
		Align(lipgloss.Left).
		MarginBottom(1)

	banner := bannerStyle.Render(strings.Join(bannerLines, "\n"))
	subtitle := subtitleStyle.Render("pb33f - the home of enterprise OpenAPI tools")

	return containerStyle.Render(banner + "\n" + subtitle)
}
