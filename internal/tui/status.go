package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// AskStatus represents the state of the last question sent to the model
type AskStatus int

const (
	// AskStatusIdle means no question has been asked yet
	AskStatusIdle AskStatus = iota
	// AskStatusInFlight means a question is waiting for an answer
	AskStatusInFlight
	// AskStatusSuccess means the last question was answered
	AskStatusSuccess
	// AskStatusError means the last question failed
	AskStatusError
)

// AskIndicator shows the model name and the state of the last question
type AskIndicator struct {
	spinner spinner.Model
	status  AskStatus
	label   string
}

// NewAskIndicator creates a new indicator with the given label
func NewAskIndicator(label string) AskIndicator {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return AskIndicator{
		spinner: s,
		status:  AskStatusIdle,
		label:   label,
	}
}

// SetStatus updates the indicator status
func (i *AskIndicator) SetStatus(status AskStatus) {
	i.status = status
}

// SetLabel changes the label, typically after a model switch
func (i *AskIndicator) SetLabel(label string) {
	i.label = label
}

// Status returns the current status
func (i AskIndicator) Status() AskStatus {
	return i.status
}

// Tick starts the spinner
func (i AskIndicator) Tick() tea.Msg {
	return i.spinner.Tick()
}

// Update processes spinner tick messages and returns the next tick while a
// question is in flight
func (i *AskIndicator) Update(msg spinner.TickMsg) tea.Cmd {
	var cmd tea.Cmd
	i.spinner, cmd = i.spinner.Update(msg)
	if i.status != AskStatusInFlight {
		return nil
	}
	return cmd
}

// View renders the indicator
func (i AskIndicator) View() string {
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	var statusIcon string
	switch i.status {
	case AskStatusInFlight:
		statusIcon = i.spinner.View()
	case AskStatusSuccess:
		statusIcon = SuccessStyle.Render(SymbolSuccess)
	case AskStatusError:
		statusIcon = ErrorStyle.Render(SymbolError)
	default:
		statusIcon = DimStyle.Render("○")
	}

	return labelStyle.Render(i.label+":") + statusIcon
}
