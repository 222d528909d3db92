package ansi

import (
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// sgr renders a Select Graphic Rendition escape sequence for the given attributes.
func sgr(attrs ...color.Attribute) string {
	codes := make([]string, len(attrs))
	for i, a := range attrs {
		codes[i] = strconv.Itoa(int(a))
	}
	return "\033[" + strings.Join(codes, ";") + "m"
}

type palette struct {
	foreground string
	background string
}

// Background variants always render bold white text on the colored background.
var palettes = map[string]palette{
	"green": {
		foreground: sgr(color.FgGreen),
		background: sgr(color.Bold, color.FgWhite) + sgr(color.BgGreen),
	},
	"yellow": {
		foreground: sgr(color.FgYellow),
		background: sgr(color.Bold, color.FgWhite) + sgr(color.BgYellow),
	},
	"red": {
		foreground: sgr(color.FgRed),
		background: sgr(color.Bold, color.FgWhite) + sgr(color.BgRed),
	},
	"blue": {
		foreground: sgr(color.Bold, color.FgBlue),
		background: sgr(color.Bold, color.FgWhite) + sgr(color.BgBlue),
	},
}

var resetSequence = sgr(color.Reset)

// Colorize wraps text in the ANSI sequence for the named color. Unknown color
// names get no prefix but still end with the reset sequence.
func Colorize(text, colorName string, background bool) string {
	p, ok := palettes[colorName]
	if !ok {
		return text + resetSequence
	}
	if background {
		return p.background + text + resetSequence
	}
	return p.foreground + text + resetSequence
}
