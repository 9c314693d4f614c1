package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/quizloop/internal/engine"
	"github.com/abhisek/quizloop/internal/grading"
	"github.com/abhisek/quizloop/internal/quiz"
	"github.com/abhisek/quizloop/internal/ui/theme"
)

const barWidth = 20

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate questions from a study text file",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		count, _ := cmd.Flags().GetInt("count")
		scope, _ := cmd.Flags().GetString("scope")

		text, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}

		ctx := context.Background()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.svc.GenerateQuestions(ctx, engine.GenerateRequest{
			Text:    string(text),
			Count:   count,
			ScopeID: scope,
		})
		if err != nil {
			return err
		}

		fmt.Println(theme.Title.Render(fmt.Sprintf("Generated %d questions", len(res.Questions))) +
			theme.Label.Render(fmt.Sprintf("  set %s, %d embedded", res.SetID, res.Embedded)))
		for i, q := range res.Questions {
			fmt.Printf("%3d. %s %s\n", i+1,
				theme.TierStyle(q.Difficulty).Render(fmt.Sprintf("[%-6s]", q.Difficulty)),
				q.QuestionText)
			fmt.Println(theme.Label.Render("     id " + q.ID))
		}
		return nil
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Select the next question for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		scope, _ := cmd.Flags().GetString("scope")

		ctx := context.Background()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		q, err := rt.svc.SelectNextQuestion(ctx, user, scope)
		if err != nil {
			return err
		}
		if q == nil {
			fmt.Println("No questions available.")
			return nil
		}
		fmt.Println(renderQuestion(*q))
		return nil
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Grade an answer and update the user's proficiency",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		questionID, _ := cmd.Flags().GetString("question-id")
		answer, _ := cmd.Flags().GetString("answer")

		ctx := context.Background()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		sub, err := rt.svc.SubmitAnswer(ctx, grading.Input{
			UserID:        user,
			QuestionID:    questionID,
			StudentAnswer: answer,
		})
		// A failed attempt write still carries a grade worth showing.
		if err != nil && sub.Result.Grade == "" {
			return err
		}
		fmt.Println(renderResult(sub.Result))
		for _, rec := range sub.Proficiency {
			fmt.Printf("  %-24s %s\n", rec.Concept, theme.ScoreBar(rec.ScoreEWMA, barWidth))
		}
		return err
	},
}

var proficiencyCmd = &cobra.Command{
	Use:   "proficiency",
	Short: "Show a user's proficiency by concept",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		ctx := context.Background()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		sum, err := rt.svc.Proficiency(ctx, user)
		if err != nil {
			return err
		}

		fmt.Println(theme.Title.Render("Proficiency for "+sum.UserID) + "  " +
			theme.TierStyle(sum.Tier).Render(string(sum.Tier)))
		fmt.Printf("  %-24s %s\n", theme.Label.Render("average"), theme.ScoreBar(sum.Average, barWidth))
		if len(sum.Records) == 0 {
			fmt.Println(theme.Hint.Render("  No concepts practiced yet."))
			return nil
		}
		fmt.Println(strings.Repeat("─", 52))
		for _, rec := range sum.Records {
			fmt.Printf("  %-24s %s\n", rec.Concept, theme.ScoreBar(rec.ScoreEWMA, barWidth))
		}
		return nil
	},
}

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "List a user's recent attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := context.Background()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		attempts, err := rt.svc.Attempts(ctx, user, limit)
		if err != nil {
			return err
		}
		if len(attempts) == 0 {
			fmt.Println("No attempts recorded.")
			return nil
		}

		fmt.Printf("%-19s  %-17s  %5s  %s\n", "Timestamp", "Grade", "Score", "Question")
		fmt.Println(strings.Repeat("─", 80))
		for _, a := range attempts {
			grade := theme.GradeStyle(a.Grade).Render(fmt.Sprintf("%-17s", a.Grade))
			fmt.Printf("%-19s  %s  %5.2f  %s\n",
				a.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				grade,
				a.Score,
				truncate(a.QuestionText, 40),
			)
		}
		return nil
	},
}

func renderQuestion(q quiz.Question) string {
	var b strings.Builder
	b.WriteString(theme.TierStyle(q.Difficulty).Render(string(q.Difficulty)))
	if len(q.Concepts) > 0 {
		b.WriteString(theme.Label.Render("  " + strings.Join(q.Concepts, ", ")))
	}
	b.WriteString("\n")
	b.WriteString(theme.Body.Render(q.QuestionText))
	for i, c := range q.Choices {
		fmt.Fprintf(&b, "\n  %c) %s", 'a'+i, c)
	}
	b.WriteString("\n")
	b.WriteString(theme.Label.Render("id " + q.ID))
	return theme.Card.Render(b.String())
}

func renderResult(r grading.Result) string {
	head := lipgloss.JoinHorizontal(lipgloss.Top,
		theme.GradeStyle(r.Grade).Render(string(r.Grade)),
		"  ",
		theme.ScoreBar(r.Score, barWidth),
	)
	lines := []string{head, theme.Body.Render(r.Justification)}
	if r.Hints != "" {
		lines = append(lines, theme.Hint.Render(r.Hints))
	}
	if len(r.Concepts) > 0 {
		lines = append(lines, theme.Label.Render("concepts: "+strings.Join(r.Concepts, ", ")))
	}
	return theme.Card.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func init() {
	generateCmd.Flags().String("file", "", "Study text file")
	generateCmd.Flags().Int("count", 0, "Number of questions (default from generator config)")
	generateCmd.Flags().String("scope", "", "Scope id to tag generated questions with")
	_ = generateCmd.MarkFlagRequired("file")

	nextCmd.Flags().String("user", "", "User id")
	nextCmd.Flags().String("scope", "", "Restrict selection to a scope")
	_ = nextCmd.MarkFlagRequired("user")

	answerCmd.Flags().String("user", "", "User id")
	answerCmd.Flags().String("question-id", "", "Question id from the bank")
	answerCmd.Flags().String("answer", "", "The answer to grade")
	_ = answerCmd.MarkFlagRequired("user")
	_ = answerCmd.MarkFlagRequired("question-id")

	proficiencyCmd.Flags().String("user", "", "User id")
	_ = proficiencyCmd.MarkFlagRequired("user")

	attemptsCmd.Flags().String("user", "", "User id")
	attemptsCmd.Flags().IntP("limit", "n", 20, "Number of attempts to show")
	_ = attemptsCmd.MarkFlagRequired("user")
}
