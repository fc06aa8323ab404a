package commands

import (
	"fmt"
	"strings"

	"dailyquiz/internal/di"
	"dailyquiz/internal/models"

	"github.com/spf13/cobra"
)

// QuizCommands returns the daily assignment commands
func QuizCommands(container di.ServiceContainerInterface) *cobra.Command {
	quizCmd := &cobra.Command{
		Use:   "quiz",
		Short: "Daily quiz assignment commands",
		Long: `Daily quiz assignment commands.

Available commands:
  today     - Show (creating if needed) today's quiz for a subject
  retry     - Replace today's quiz for a subject with a fresh selection
  preview   - Show the questions tomorrow's quiz would contain`,
	}

	quizCmd.AddCommand(&cobra.Command{
		Use:   "today <subject>",
		Short: "Show today's quiz for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := container.GetDailyQuizService()
			if err != nil {
				return err
			}
			quiz, err := svc.GetTodayQuiz(cmd.Context(), subjectArg(args))
			if err != nil {
				return err
			}
			return printQuiz(cmd, quiz)
		},
	})

	quizCmd.AddCommand(&cobra.Command{
		Use:   "retry <subject>",
		Short: "Regenerate today's quiz for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := container.GetDailyQuizService()
			if err != nil {
				return err
			}
			assignment, err := svc.Regenerate(cmd.Context(), subjectArg(args))
			if err != nil {
				return err
			}
			quiz, err := svc.ResolveAssignment(cmd.Context(), assignment)
			if err != nil {
				return err
			}
			return printQuiz(cmd, quiz)
		},
	})

	quizCmd.AddCommand(&cobra.Command{
		Use:   "preview <subject>",
		Short: "Show tomorrow's selection without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := container.GetDailyQuizService()
			if err != nil {
				return err
			}
			preview, err := svc.GenerateTomorrowPreview(cmd.Context(), subjectArg(args))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Preview for %s on %s (%d questions)\n", preview.Subject, preview.Date, len(preview.Questions))
			return printQuestions(out, preview.Questions, true)
		},
	})

	return quizCmd
}

func subjectArg(args []string) string {
	return strings.ToLower(strings.TrimSpace(args[0]))
}

func printQuiz(cmd *cobra.Command, quiz *models.DailyQuiz) error {
	out := cmd.OutOrStdout()
	a := quiz.Assignment
	generated := "never"
	if a.GeneratedAt != nil {
		generated = a.GeneratedAt.Format("2006-01-02 15:04:05 MST")
	}
	fmt.Fprintf(out, "Quiz for %s on %s (version %d, generated %s)\n", a.Subject, a.Date, a.QuizVersion, generated)
	if len(quiz.Questions) == 0 {
		fmt.Fprintln(out, "No questions available for this subject.")
		return nil
	}
	return printQuestions(out, quiz.Questions, true)
}
