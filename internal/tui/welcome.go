package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/ansi"
)

// WelcomeInfo contains information to display in the welcome header.
type WelcomeInfo struct {
	Version       string
	LatestVersion string
	Model         string
	Catalog       string
	Items         int
	Categories    int
}

// tips is the list of tips to display in the welcome header.
// A "tip of the day" is selected based on the current date.
var tips = []string{
	"type a question and press Enter to ask about your catalog",
	"use /suggest to see example questions",
	"use /load <file> to analyze a CSV, JSON or Excel file",
	"use /reload to go back to the default product data",
	"use /context to see exactly what the model is told",
	"use /model <name> to switch models, /models to list them",
	"use /prompt <text> to change the system prompt",
	"use /export csv|pdf <path> to save the conversation",
	"use /copy to copy the last answer to the clipboard",
	"use /stats for category counts and price statistics",
	"press PgUp/PgDn to scroll the conversation",
	"press Ctrl+C or type /exit to quit",
}

var logo = []string{
	" ___ _                ",
	"/ __| |_  ___ _ __    ",
	"\\__ \\ ' \\/ _ \\ '_ \\   ",
	"|___/_||_\\___/ .__/   ",
	"             |_|      ",
}

// getTipOfTheDay returns a tip based on the current date.
func getTipOfTheDay() string {
	if len(tips) == 0 {
		return ""
	}
	now := time.Now()
	daysSinceEpoch := now.Year()*365 + int(now.Month())*31 + now.Day()
	return tips[daysSinceEpoch%len(tips)]
}

// renderWelcome renders the logo on the left and session info on the right.
func renderWelcome(info WelcomeInfo, termWidth int) string {
	logoStyle := lipgloss.NewStyle().Foreground(ColorYellow)
	labelStyle := lipgloss.NewStyle().Foreground(ColorGray)
	valueStyle := lipgloss.NewStyle().Foreground(ColorYellow)
	dimStyle := lipgloss.NewStyle().Foreground(ColorGray).Italic(true)

	minGap := 4
	logoWidth := 0
	for _, l := range logo {
		logoWidth = max(logoWidth, ansi.PrintableRuneWidth(l))
	}

	var infoLines []string
	infoLines = append(infoLines, TitleStyle.Render("Shop Insight"))
	infoLines = append(infoLines, "")

	switch info.Version {
	case "":
	case "dev":
		infoLines = append(infoLines, labelStyle.Render("version: ")+dimStyle.Render("development"))
	default:
		infoLines = append(infoLines, labelStyle.Render("version: ")+valueStyle.Render(info.Version))
	}

	if info.LatestVersion != "" {
		infoLines = append(infoLines, labelStyle.Render("update:  ")+SuccessStyle.Render(info.LatestVersion+" available, run shopinsight update"))
	}

	infoLines = append(infoLines, labelStyle.Render("model:   ")+valueStyle.Render(info.Model))
	if info.Catalog != "" {
		infoLines = append(infoLines, labelStyle.Render("catalog: ")+valueStyle.Render(info.Catalog))
		infoLines = append(infoLines, labelStyle.Render("items:   ")+valueStyle.Render(
			humanize.Comma(int64(info.Items))+" in "+humanize.Comma(int64(info.Categories))+" categories"))
	} else {
		infoLines = append(infoLines, labelStyle.Render("catalog: ")+dimStyle.Render("none loaded"))
	}

	tip := getTipOfTheDay()

	var out strings.Builder
	widest := 0
	for _, l := range infoLines {
		widest = max(widest, ansi.PrintableRuneWidth(l))
	}

	if termWidth < logoWidth+minGap+widest {
		// too narrow, skip the logo
		for _, line := range infoLines {
			out.WriteString(line + "\n")
		}
	} else {
		numLines := max(len(logo), len(infoLines))
		gap := strings.Repeat(" ", minGap)
		for i := 0; i < numLines; i++ {
			logoLine := strings.Repeat(" ", logoWidth)
			if i < len(logo) {
				logoLine = logoStyle.Render(logo[i])
			}
			infoLine := ""
			if i < len(infoLines) {
				infoLine = infoLines[i]
			}
			out.WriteString(strings.TrimRight(logoLine+gap+infoLine, " ") + "\n")
		}
	}

	if tip != "" {
		out.WriteString("\n" + dimStyle.Render("tip: "+tip) + "\n")
	}
	return out.String()
}
