package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/notebook"
	"github.com/abhisek/mistakebook/internal/ui/confirm"
	"github.com/abhisek/mistakebook/internal/ui/theme"
)

var solveCmd = &cobra.Command{
	Use:   "solve <question-id>...",
	Short: "Solve questions against knowledge points",
	Long: "Solve one question with the knowledge points given by --kp/--point, or, when none are " +
		"given, with the points previously confirmed for it. Several ids are solved concurrently " +
		"using their confirmed points.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, appOptions{llm: true})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		user := currentUser(cmd)
		force, _ := cmd.Flags().GetBool("force")

		if len(ids) > 1 {
			for _, item := range a.svc.SolveMany(ctx, user, ids, force) {
				fmt.Println(theme.Title.Render(fmt.Sprintf("Question #%d", item.QuestionID)))
				if item.Err != nil {
					fmt.Println(theme.Failed.Render("error: ") + item.Err.Error())
					fmt.Println()
					continue
				}
				printOutcome(item.Outcome)
			}
			return nil
		}

		opts, err := solveOptions(cmd)
		if err != nil {
			return err
		}
		if len(opts.Refs) == 0 {
			related, err := a.svc.RelatedKnowledge(ctx, user, ids[0])
			if err != nil {
				return err
			}
			if len(related) == 0 {
				return fmt.Errorf("question %d has no confirmed knowledge points; pass --kp or --point", ids[0])
			}
			opts.Refs = notebook.RefsFromPoints(related)
		}

		out, err := a.svc.Solve(ctx, user, ids[0], opts)
		if err != nil {
			if out != nil && out.Result != nil {
				printOutcome(out)
			}
			return err
		}
		printOutcome(out)

		if review, _ := cmd.Flags().GetBool("review"); review {
			return reviewExtraction(ctx, a, user, out)
		}
		return nil
	},
}

func init() {
	solveCmd.Flags().IntSlice("kp", nil, "Stored knowledge point ids to solve with")
	solveCmd.Flags().StringArray("point", nil, `Inline knowledge point "subject/chapter/section/item"`)
	solveCmd.Flags().Bool("force", false, "Re-solve even when a passed solution is stored")
	solveCmd.Flags().Bool("incomplete", false, "Treat the knowledge points as incomplete (skips the completeness check)")
	solveCmd.Flags().Bool("review", false, "Confirm the extracted knowledge points interactively")
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, len(args))
	for i, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid question id %q", arg)
		}
		ids[i] = id
	}
	return ids, nil
}

func solveOptions(cmd *cobra.Command) (notebook.SolveOptions, error) {
	var opts notebook.SolveOptions
	opts.Force, _ = cmd.Flags().GetBool("force")
	if cmd.Flags().Changed("incomplete") {
		v, _ := cmd.Flags().GetBool("incomplete")
		opts.Incomplete = &v
	}

	kps, _ := cmd.Flags().GetIntSlice("kp")
	for _, id := range kps {
		opts.Refs = append(opts.Refs, notebook.PointRef{ID: id})
	}
	points, _ := cmd.Flags().GetStringArray("point")
	for _, p := range points {
		ref, err := parsePoint(p)
		if err != nil {
			return opts, err
		}
		opts.Refs = append(opts.Refs, ref)
	}
	return opts, nil
}

// parsePoint reads "subject/chapter/section/item". The item may contain
// slashes.
func parsePoint(s string) (notebook.PointRef, error) {
	parts := strings.SplitN(s, "/", 4)
	if len(parts) != 4 {
		return notebook.PointRef{}, fmt.Errorf("invalid point %q: want subject/chapter/section/item", s)
	}
	return notebook.PointRef{Subject: parts[0], Chapter: parts[1], Section: parts[2], Item: parts[3]}, nil
}

func printOutcome(out *notebook.SolveOutcome) {
	r := out.Result
	if out.Cached {
		fmt.Println(theme.Hint.Render("(stored passed solution; pass --force to re-solve)"))
	}
	fmt.Println(theme.Heading.Render("Solution"))
	fmt.Println(r.Solution)
	fmt.Println()
	fmt.Printf("Review:    %s after %d attempt(s)\n", theme.Verdict(r.ReviewPassed), r.Attempts)
	if r.ReviewReason != "" {
		fmt.Printf("Reason:    %s\n", r.ReviewReason)
	}
	if r.SolveID != "" {
		fmt.Printf("Trace:     %s\n", theme.Dim.Render(r.SolveID))
	}

	if len(r.KnowledgePointsUsed) > 0 {
		fmt.Println()
		fmt.Println(theme.Heading.Render("Knowledge points used"))
		for _, v := range r.KnowledgePointsUsed {
			fmt.Printf("  %s %s\n", v.Identity().Path(), idLabel(v.ID))
		}
	}
	if len(r.NewKnowledgePoints) > 0 {
		fmt.Println()
		fmt.Println(theme.Heading.Render("Proposed knowledge points"))
		for _, d := range r.NewKnowledgePoints {
			fmt.Printf("  %s %s\n", d.Identity().Path(), theme.New.Render("(new)"))
		}
	}
	fmt.Println()
}

func idLabel(id int) string {
	if id == 0 {
		return theme.Dim.Render("(inline)")
	}
	return theme.Dim.Render(fmt.Sprintf("#%d", id))
}

// reviewExtraction lets the user veto extracted points, then marks the rest.
func reviewExtraction(ctx context.Context, a *app, user string, out *notebook.SolveOutcome) error {
	var used []knowledge.View
	proposed := append([]knowledge.Draft(nil), out.Result.NewKnowledgePoints...)
	for _, v := range out.Result.KnowledgePointsUsed {
		if v.ID != 0 {
			used = append(used, v)
			continue
		}
		// Inline points are not stored yet; offer them for creation.
		proposed = append(proposed, knowledge.Draft{
			Subject: v.Subject, Chapter: v.Chapter, Section: v.Section, Item: v.Item, Details: v.Details,
		})
	}

	sel, err := confirm.Run(ctx, out.Question.Text, used, proposed)
	if err != nil {
		return err
	}
	if sel.Cancelled || sel.Empty() {
		fmt.Println("Nothing marked.")
		return nil
	}

	marked, err := a.svc.Confirm(ctx, user, out.Question.ID, sel.ExistingIDs, sel.Drafts)
	if err != nil {
		return fmt.Errorf("confirm knowledge points: %w", err)
	}
	fmt.Printf("Marked %d knowledge point(s).\n", len(marked))
	return nil
}
