// Package tui implements the interactive terminal dashboard.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	ColorCyan   = lipgloss.Color("12") // Assistant answers
	ColorYellow = lipgloss.Color("11") // Titles, user questions
	ColorGreen  = lipgloss.Color("10") // Success indicator
	ColorRed    = lipgloss.Color("9")  // Error indicator
	ColorGray   = lipgloss.Color("8")  // Dim/secondary
)

const (
	SymbolUser          = "❯"
	SymbolAssistant     = "●"
	SymbolSuccess       = "✓"
	SymbolError         = "✗"
	SymbolSystemMessage = "→"
)

var (
	TitleStyle         = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	UserStyle          = lipgloss.NewStyle().Foreground(ColorYellow)
	AssistantStyle     = lipgloss.NewStyle().Foreground(ColorCyan)
	SuccessStyle       = lipgloss.NewStyle().Foreground(ColorGreen)
	ErrorStyle         = lipgloss.NewStyle().Foreground(ColorRed)
	DimStyle           = lipgloss.NewStyle().Foreground(ColorGray)
	SystemMessageStyle = lipgloss.NewStyle().Foreground(ColorGray)
)

// StyledSymbol returns a symbol with appropriate styling applied
func StyledSymbol(symbol string) string {
	switch symbol {
	case SymbolUser:
		return UserStyle.Render(symbol)
	case SymbolAssistant:
		return AssistantStyle.Render(symbol)
	case SymbolSuccess:
		return SuccessStyle.Render(symbol)
	case SymbolError:
		return ErrorStyle.Render(symbol)
	case SymbolSystemMessage:
		return SystemMessageStyle.Render(symbol)
	default:
		return symbol
	}
}
