package tui

import (
	"github.com/charmbracelet/lipgloss/v2"
)

// Color constants matching vacuum EXACTLY
var (
	RGBBlue   = lipgloss.Color("45")
	RGBPink   = lipgloss.Color("201")
	RGBRed    = lipgloss.Color("196")
	RGBYellow = lipgloss.Color("220")
	RGBGreen  = lipgloss.Color("46")
	RGBGrey   = lipgloss.Color("246")
)

// General styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(RGBPink)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(RGBGrey)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(RGBBlue)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(RGBRed).
			Bold(true)
)

// Entry line styles for methods and status codes
var (
	// HTTP Methods
	StyleMethodGreen  = lipgloss.NewStyle().Foreground(RGBGreen)  // GET, QUERY
	StyleMethodYellow = lipgloss.NewStyle().Foreground(RGBYellow) // PATCH
	StyleMethodBlue   = lipgloss.NewStyle().Foreground(RGBBlue)   // PUT, POST
	StyleMethodRed    = lipgloss.NewStyle().Foreground(RGBRed)    // DELETE

	// Status codes
	StyleStatusOK  = lipgloss.NewStyle().Foreground(RGBGreen)
	StyleStatus4xx = lipgloss.NewStyle().Foreground(RGBYellow) // 4xx errors
	StyleStatus5xx = lipgloss.NewStyle().Foreground(RGBRed)    // 5xx errors

	// Duration and addresses (faint like entry count)
	StyleDurationFaint = lipgloss.NewStyle().Faint(true)
	StyleAddress       = lipgloss.NewStyle().Foreground(RGBGrey)
)

// Document styles
var (
	SyntaxKeyStyle    = lipgloss.NewStyle().Foreground(RGBBlue).Bold(true)
	SyntaxDashStyle   = lipgloss.NewStyle().Foreground(RGBPink)   // braces
	SyntaxNumberStyle = lipgloss.NewStyle().Foreground(RGBYellow) // brackets, numbers and booleans
	SyntaxNullStyle   = lipgloss.NewStyle().Faint(true)
)
