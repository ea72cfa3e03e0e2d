package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/mistakebook/internal/notebook"
	"github.com/abhisek/mistakebook/internal/store"
	"github.com/abhisek/mistakebook/internal/ui/theme"
)

var questionCmd = &cobra.Command{
	Use:     "question",
	Aliases: []string{"q"},
	Short:   "Record and inspect wrong questions",
}

var questionAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Record a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		answer, _ := cmd.Flags().GetString("answer")
		subject, _ := cmd.Flags().GetString("subject")
		q, err := a.svc.AddQuestion(cmd.Context(), currentUser(cmd), notebook.NewQuestion{
			Text: args[0], CorrectAnswer: answer, Subject: subject,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Recorded question #%d\n", q.ID)
		return nil
	},
}

var questionOCRCmd = &cobra.Command{
	Use:   "ocr <image>",
	Short: "Record a question from a photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		var answer []byte
		if p, _ := cmd.Flags().GetString("answer-image"); p != "" {
			if answer, err = os.ReadFile(p); err != nil {
				return fmt.Errorf("read answer image: %w", err)
			}
		}

		a, err := newApp(cmd, appOptions{llm: true})
		if err != nil {
			return err
		}
		defer a.Close()

		subject, _ := cmd.Flags().GetString("subject")
		q, err := a.svc.AddQuestionFromImage(cmd.Context(), currentUser(cmd), image, answer, subject)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded question #%d\n\n", q.ID)
		printQuestion(q)
		return nil
	},
}

var questionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded questions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		qs, err := a.svc.Questions(cmd.Context(), currentUser(cmd), limit, offset)
		if err != nil {
			return err
		}
		if len(qs) == 0 {
			fmt.Println("No questions recorded.")
			return nil
		}

		fmt.Printf("%-5s  %-10s  %-10s  %s\n", "ID", "Subject", "Solved", "Question")
		fmt.Println(strings.Repeat("─", 80))
		for _, q := range qs {
			solved := "-"
			if q.Solved() {
				solved = theme.Verdict(*q.ReviewPassed)
			}
			fmt.Printf("%-5d  %-10s  %-10s  %s\n", q.ID, truncate(q.Subject, 10), solved, truncate(oneLine(q.Text), 50))
		}
		return nil
	},
}

var questionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a question with its solution and knowledge points",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		q, err := a.svc.Question(ctx, currentUser(cmd), id)
		if err != nil {
			return err
		}
		printQuestion(q)

		related, err := a.svc.RelatedKnowledge(ctx, currentUser(cmd), id)
		if err != nil {
			return err
		}
		if len(related) > 0 {
			fmt.Println()
			fmt.Println(theme.Heading.Render("Knowledge points"))
			for _, kp := range related {
				fmt.Printf("  %s %s\n", kp.Identity().Path(), idLabel(kp.ID))
			}
		}
		return nil
	},
}

var questionLocateCmd = &cobra.Command{
	Use:   "locate <id>",
	Short: "Classify a question and look up matching knowledge points",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		a, err := newApp(cmd, appOptions{llm: true})
		if err != nil {
			return err
		}
		defer a.Close()

		loc, err := a.svc.Locate(cmd.Context(), currentUser(cmd), id)
		if err != nil {
			return err
		}

		g := loc.Subject
		fmt.Printf("Status:     %s\n", loc.Status)
		fmt.Printf("Placement:  %s/%s/%s (confidence %d/10)\n", g.Subject, g.Chapter, g.Section, g.Confidence)
		if loc.Status == notebook.LocateSuccess {
			fmt.Printf("Complete:   %v\n", loc.Complete)
		}
		if len(loc.Evaluation.Missing) > 0 {
			fmt.Printf("Missing:    %s\n", strings.Join(loc.Evaluation.Missing, "; "))
		}
		for _, kp := range loc.Points {
			fmt.Printf("  %s %s\n", kp.Identity().Path(), idLabel(kp.ID))
		}
		if len(loc.Suggestions) > 0 {
			fmt.Println()
			fmt.Println(theme.Heading.Render("Possible categories"))
			for _, c := range loc.Suggestions {
				fmt.Printf("  %s\n", c)
			}
		}
		return nil
	},
}

func printQuestion(q *store.Question) {
	fmt.Println(theme.Title.Render(fmt.Sprintf("Question #%d", q.ID)))
	fmt.Println(q.Text)
	if q.Subject != "" {
		fmt.Printf("\nSubject:   %s\n", q.Subject)
	}
	if q.CorrectAnswer != "" {
		fmt.Printf("Answer:    %s\n", q.CorrectAnswer)
	}
	if !q.Solved() {
		return
	}
	fmt.Println()
	fmt.Println(theme.Heading.Render("Solution"))
	fmt.Println(q.Solution)
	fmt.Printf("\nReview:    %s after %d attempt(s)\n", theme.Verdict(*q.ReviewPassed), q.Attempts)
	if q.ReviewReason != "" {
		fmt.Printf("Reason:    %s\n", q.ReviewReason)
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func init() {
	questionAddCmd.Flags().String("answer", "", "Correct answer, if known")
	questionAddCmd.Flags().String("subject", "", "Subject label")

	questionOCRCmd.Flags().String("answer-image", "", "Photo of the correct answer")
	questionOCRCmd.Flags().String("subject", "", "Subject label")

	questionListCmd.Flags().IntP("limit", "n", 20, "Number of questions to show")
	questionListCmd.Flags().Int("offset", 0, "Number of questions to skip")

	questionCmd.AddCommand(questionAddCmd)
	questionCmd.AddCommand(questionOCRCmd)
	questionCmd.AddCommand(questionListCmd)
	questionCmd.AddCommand(questionShowCmd)
	questionCmd.AddCommand(questionLocateCmd)
}
