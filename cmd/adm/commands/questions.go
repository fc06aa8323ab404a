package commands

import (
	"fmt"
	"os"

	"dailyquiz/internal/di"
	contextutils "dailyquiz/internal/utils"

	"github.com/spf13/cobra"
)

// QuestionCommands returns the question bank commands
func QuestionCommands(container di.ServiceContainerInterface) *cobra.Command {
	questionsCmd := &cobra.Command{
		Use:   "questions",
		Short: "Question bank commands",
		Long: `Question bank commands.

Available commands:
  import      - Add questions from a YAML file
  list        - List questions
  deactivate  - Stop a question from being selected`,
	}

	questionsCmd.AddCommand(importCmd(container))
	questionsCmd.AddCommand(listQuestionsCmd(container))
	questionsCmd.AddCommand(&cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := container.GetQuestionService()
			if err != nil {
				return err
			}
			if err := svc.DeactivateQuestion(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Question %s deactivated\n", args[0])
			return nil
		},
	})

	return questionsCmd
}

func importCmd(container di.ServiceContainerInterface) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import questions from YAML",
		Long: `Import questions from a YAML file of the form:

questions:
  - stem: "Which organelle produces ATP?"
    options: ["Nucleus", "Mitochondrion", "Ribosome", "Golgi body"]
    correct_index: 1
    topic: cells
    subject: biology
    difficulty: 1

The file is validated against the import schema before anything is written.
Questions that fail individually are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			importer, err := container.GetQuestionImporter()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to open %s", args[0])
			}
			defer func() { _ = f.Close() }()

			res, err := importer.Import(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d question(s)\n", len(res.Imported))
			for _, f := range res.Failed {
				fmt.Fprintf(out, "  failed #%d %q: %s\n", f.Index, truncate(f.Stem, 40), f.Error)
			}
			if len(res.Failed) > 0 {
				return contextutils.ErrorWithContextf("%d question(s) failed to import", len(res.Failed))
			}
			return nil
		},
	}
}

func listQuestionsCmd(container di.ServiceContainerInterface) *cobra.Command {
	var subject string
	var includeInactive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List questions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := container.GetQuestionService()
			if err != nil {
				return err
			}
			questions, err := svc.ListQuestions(cmd.Context(), subject, includeInactive)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d question(s)\n", len(questions))
			return printQuestions(out, questions, true)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Only list questions for this subject")
	cmd.Flags().BoolVar(&includeInactive, "include-inactive", false, "Include deactivated questions")

	return cmd
}
