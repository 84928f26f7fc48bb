package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))

	containerTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	followUpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	rawStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))

	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	aiStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	systemStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	inputStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63"))
	inputDisabledStyle = inputStyle.BorderForeground(lipgloss.Color("238"))
)
