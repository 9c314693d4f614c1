// Package theme holds the terminal styles used by the command line output.
package theme

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/quizloop/internal/quiz"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Warning   = lipgloss.Color("#EAB308") // Amber
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Label = lipgloss.NewStyle().
		Foreground(TextDim)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
)

// Grades
var (
	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Partial = lipgloss.NewStyle().
		Foreground(Warning).
		Bold(true)

	Incorrect = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)
)

// GradeStyle returns the style a grade is rendered with.
func GradeStyle(g quiz.Grade) lipgloss.Style {
	switch g {
	case quiz.Correct:
		return Correct
	case quiz.PartiallyCorrect:
		return Partial
	default:
		return Incorrect
	}
}

// TierStyle returns the style a difficulty tier is rendered with.
func TierStyle(d quiz.Difficulty) lipgloss.Style {
	switch d {
	case quiz.Easy:
		return lipgloss.NewStyle().Foreground(Secondary)
	case quiz.Hard:
		return lipgloss.NewStyle().Foreground(Accent).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(Primary)
	}
}

// ScoreBar renders a score as a bar of width cells followed by the
// percentage. Scores outside [0,1] are clamped.
func ScoreBar(score float64, width int) string {
	if width < 4 {
		width = 4
	}
	score = max(0, min(1, score))
	filled := int(float64(width) * score)

	filledStr := lipgloss.NewStyle().
		Foreground(Secondary).
		Render(strings.Repeat("█", filled))
	emptyStr := lipgloss.NewStyle().
		Foreground(Border).
		Render(strings.Repeat("░", width-filled))

	return filledStr + emptyStr + Label.Render(fmt.Sprintf(" %3d%%", int(score*100+0.5)))
}
