package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/knotview/pkg/scene"
)

// =============================================================================
// Palette and Styles
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorBlue   = lipgloss.Color("75")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	// StyleTitle is for headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	// StyleHighlight marks knot ids and frame ids.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)
	// StyleLink marks URLs and listen addresses.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)
	// StyleDim is secondary text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)
	// StyleValue is data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)
	// StyleNumber is counts.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)
	// StyleSuccess marks visible knots and hits.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	// StyleWarning marks pending joins and warnings.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(12)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Lines
// =============================================================================

func printLine(icon string, iconStyle lipgloss.Style, msg string) {
	fmt.Println(iconStyle.Render(icon) + " " + msg)
}

func printSuccess(format string, args ...any) {
	printLine(iconSuccess, styleIconSuccess, fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	printLine(iconError, styleIconError, fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	printLine(iconWarning, styleIconWarning, StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	printLine(iconInfo, styleIconInfo, fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile reports a written output file.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Println(styleKey.Render(key) + " " + StyleValue.Render(value))
}

func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

func printNewline() {
	fmt.Println()
}

// =============================================================================
// Scene Output
// =============================================================================

// knotState renders the visibility and join state of a knot.
func knotState(k scene.KnotStatus) string {
	state := StyleSuccess.Render("visible")
	if !k.Visible {
		state = StyleDim.Render("hidden")
	}
	if k.Pending {
		state += StyleWarning.Render(", join pending")
	}
	return state
}

// knotSource renders "layer/level" for a knot.
func knotSource(k scene.KnotStatus) string {
	if k.Level == "" {
		return k.Layer
	}
	return k.Layer + "/" + k.Level
}

// printKnots lists knots in render order.
func printKnots(knots []scene.KnotStatus) {
	for _, k := range knots {
		printDetail("%-16s %-24s %s", k.ID, knotSource(k), knotState(k))
	}
}

// printPick reports the result of a click on the canvas.
func printPick(xy [2]int, res scene.PickResult) {
	if !res.Hit {
		printInfo("Pick %d,%d: nothing hit", xy[0], xy[1])
		return
	}
	printInfo("Pick %d,%d: %s element %d", xy[0], xy[1], StyleHighlight.Render(res.KnotID), res.Element)
}

// printStats prints scene statistics on one line; a zero draw count is
// omitted.
func printStats(layerCount, knotCount, drawCount int, elapsed time.Duration) {
	parts := []string{
		fmt.Sprintf("%d layers", layerCount),
		fmt.Sprintf("%d knots", knotCount),
	}
	if drawCount > 0 {
		parts = append(parts, fmt.Sprintf("%d draws", drawCount))
	}
	parts = append(parts, elapsed.Round(time.Millisecond).String())
	fmt.Println("  " + StyleDim.Render(strings.Join(parts, " · ")))
}
