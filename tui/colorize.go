package tui

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss/v2"
)

// pre-rendered method strings to avoid repeated style.Render() calls in hot path
var renderedMethods = map[string]string{}

func init() {
	for method, style := range map[string]lipgloss.Style{
		"GET":    StyleMethodGreen,
		"QUERY":  StyleMethodGreen,
		"PATCH":  StyleMethodYellow,
		"PUT":    StyleMethodBlue,
		"POST":   StyleMethodBlue,
		"DELETE": StyleMethodRed,
	} {
		renderedMethods[method] = style.Render(method)
	}
}

// Method colors an HTTP method, unknown methods are returned as is.
func Method(method string) string {
	if rendered, ok := renderedMethods[strings.ToUpper(method)]; ok {
		return rendered
	}
	return method
}

// Status colors a status code: 2xx/3xx green, 4xx yellow, 5xx red.
// Zero means no response was seen and renders as a faint dash.
func Status(code int) string {
	text := strconv.Itoa(code)
	switch {
	case code == 0:
		return StyleDurationFaint.Render("-")
	case code >= 500 && code < 600:
		return StyleStatus5xx.Render(text)
	case code >= 400:
		return StyleStatus4xx.Render(text)
	default:
		return StyleStatusOK.Render(text)
	}
}

// Duration renders d faint, rounded to the millisecond (microseconds below 1ms).
func Duration(d *time.Duration) string {
	if d == nil {
		return StyleDurationFaint.Render("-")
	}
	rounded := d.Round(time.Millisecond)
	if *d < time.Millisecond {
		rounded = d.Round(time.Microsecond)
	}
	return StyleDurationFaint.Render(rounded.String())
}
