package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/ui/theme"
)

var knowledgeCmd = &cobra.Command{
	Use:     "knowledge",
	Aliases: []string{"kp"},
	Short:   "Manage knowledge points",
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add <subject/chapter/section/item>",
	Short: "Add a knowledge point (returns the existing one if present)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := parsePoint(args[0])
		if err != nil {
			return err
		}
		details, _ := cmd.Flags().GetString("details")

		a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		kp, err := a.svc.AddKnowledgePoint(cmd.Context(), knowledge.Draft{
			Subject: ref.Subject, Chapter: ref.Chapter, Section: ref.Section, Item: ref.Item, Details: details,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Knowledge point #%d  %s\n", kp.ID, kp.Identity().Path())
		return nil
	},
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge points",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := knowledgeFilter(cmd)
		if err != nil {
			return err
		}
		points, err := a.svc.Knowledge().Query(cmd.Context(), f)
		if err != nil {
			return err
		}
		printPoints(points)
		return nil
	},
}

var knowledgePopularCmd = &cobra.Command{
	Use:   "popular",
	Short: "List the most frequently marked knowledge points",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		points, err := a.svc.Knowledge().Popular(cmd.Context(), limit)
		if err != nil {
			return err
		}
		printPoints(points)
		return nil
	},
}

var knowledgeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one knowledge point",
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

		kp, err := a.svc.Knowledge().FindByID(cmd.Context(), id)
		if err != nil {
			return err
		}
		if kp == nil {
			return fmt.Errorf("knowledge point %d not found", id)
		}

		fmt.Printf("ID:        %d\n", kp.ID)
		fmt.Printf("Subject:   %s\n", kp.Subject)
		fmt.Printf("Chapter:   %s\n", kp.Chapter)
		fmt.Printf("Section:   %s\n", kp.Section)
		fmt.Printf("Item:      %s\n", kp.Item)
		fmt.Printf("Marks:     %d\n", kp.MarkCount)
		fmt.Printf("Created:   %s\n", kp.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if kp.Details != "" {
			fmt.Println()
			fmt.Println(kp.Details)
		}
		return nil
	},
}

var knowledgeTreeCmd = &cobra.Command{
	Use:   "tree [subject]",
	Short: "Show the subject/chapter/section hierarchy",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		ks := a.svc.Knowledge()
		subjects := args
		if len(subjects) == 0 {
			if subjects, err = ks.Subjects(ctx); err != nil {
				return err
			}
		}
		if len(subjects) == 0 {
			fmt.Println("No knowledge points yet.")
			return nil
		}
		for _, s := range subjects {
			if err := printSubjectTree(ctx, ks, s); err != nil {
				return err
			}
		}
		return nil
	},
}

var knowledgeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export knowledge points as CSV or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format != "csv" && format != "json" {
			return fmt.Errorf("unknown format %q: want csv or json", format)
		}

		a, err := newApp(cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := knowledgeFilter(cmd)
		if err != nil {
			return err
		}
		f.Limit = 0
		points, err := a.svc.Knowledge().Query(cmd.Context(), f)
		if err != nil {
			return err
		}

		if format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(points)
		}
		return writePointsCSV(points)
	},
}

func writePointsCSV(points []*knowledge.KnowledgePoint) error {
	w := csv.NewWriter(os.Stdout)
	if err := w.Write([]string{"id", "subject", "chapter", "section", "item", "details", "mark_count"}); err != nil {
		return err
	}
	for _, kp := range points {
		if err := w.Write([]string{
			strconv.Itoa(kp.ID), kp.Subject, kp.Chapter, kp.Section, kp.Item, kp.Details, strconv.Itoa(kp.MarkCount),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func knowledgeFilter(cmd *cobra.Command) (knowledge.Filter, error) {
	var f knowledge.Filter
	f.Subject, _ = cmd.Flags().GetString("subject")
	f.Chapter, _ = cmd.Flags().GetString("chapter")
	f.Section, _ = cmd.Flags().GetString("section")
	f.Item, _ = cmd.Flags().GetString("search")
	f.Limit, _ = cmd.Flags().GetInt("limit")

	sortBy, _ := cmd.Flags().GetString("sort")
	switch knowledge.SortField(sortBy) {
	case knowledge.SortByMarkCount:
		f.SortBy, f.Desc = knowledge.SortByMarkCount, true
	case knowledge.SortByCreatedAt:
		f.SortBy = knowledge.SortByCreatedAt
	default:
		return f, fmt.Errorf("unknown sort %q: want mark_count or created_at", sortBy)
	}
	return f, nil
}

func printPoints(points []*knowledge.KnowledgePoint) {
	if len(points) == 0 {
		fmt.Println("No knowledge points found.")
		return
	}
	fmt.Printf("%-5s  %-5s  %s\n", "ID", "Marks", "Knowledge point")
	fmt.Println(strings.Repeat("─", 80))
	for _, kp := range points {
		fmt.Printf("%-5d  %-5d  %s\n", kp.ID, kp.MarkCount, kp.Identity().Path())
	}
}

func printSubjectTree(ctx context.Context, ks knowledge.Store, subject string) error {
	chapters, err := ks.Chapters(ctx, subject)
	if err != nil {
		return err
	}
	fmt.Println(theme.Title.Render(subject))
	for i, ch := range chapters {
		chPrefix, chIndent := "├── ", "│   "
		if i == len(chapters)-1 {
			chPrefix, chIndent = "└── ", "    "
		}
		fmt.Println(chPrefix + theme.Heading.Render(ch))

		sections, err := ks.Sections(ctx, subject, ch)
		if err != nil {
			return err
		}
		for j, sec := range sections {
			secPrefix := "├── "
			if j == len(sections)-1 {
				secPrefix = "└── "
			}
			points, err := ks.FindByStructure(ctx, subject, ch, sec)
			if err != nil {
				return err
			}
			fmt.Printf("%s%s%s %s\n", chIndent, secPrefix, sec, theme.Dim.Render(fmt.Sprintf("(%d)", len(points))))
		}
	}
	return nil
}

func init() {
	knowledgeAddCmd.Flags().String("details", "", "Explanation of the knowledge point")

	for _, c := range []*cobra.Command{knowledgeListCmd, knowledgeExportCmd} {
		c.Flags().String("subject", "", "Filter by subject")
		c.Flags().String("chapter", "", "Filter by chapter")
		c.Flags().String("section", "", "Filter by section")
		c.Flags().StringP("search", "s", "", "Case-insensitive substring of the item")
		c.Flags().String("sort", string(knowledge.SortByMarkCount), "Sort by mark_count or created_at")
	}
	knowledgeListCmd.Flags().IntP("limit", "n", 50, "Number of points to show")
	knowledgeExportCmd.Flags().String("format", "csv", "Output format: csv or json")
	knowledgePopularCmd.Flags().IntP("limit", "n", 10, "Number of points to show")

	knowledgeCmd.AddCommand(knowledgeAddCmd)
	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgePopularCmd)
	knowledgeCmd.AddCommand(knowledgeShowCmd)
	knowledgeCmd.AddCommand(knowledgeTreeCmd)
	knowledgeCmd.AddCommand(knowledgeExportCmd)
}
