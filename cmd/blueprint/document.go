package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"z-novel-blueprint/internal/application/blueprint"
	"z-novel-blueprint/internal/application/blueprint/validate"
	"z-novel-blueprint/internal/domain/entity"
)

var docFlags struct {
	ranges     []string
	start, end int
	fix        bool
	chapter    int
}

var removeCmd = &cobra.Command{
	Use:     "remove",
	Short:   "Remove chapters in the given ranges; units fully inside a range are removed too",
	PreRunE: requireNovel,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ranges := make([]entity.GenerationRange, 0, len(docFlags.ranges))
		for _, s := range docFlags.ranges {
			r, err := entity.ParseGenerationRange(s)
			if err != nil {
				return err
			}
			ranges = append(ranges, r)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		text, err := a.store.Load(ctx, novelID)
		if err != nil {
			return err
		}
		grammar := blueprint.NewGrammar(a.cfg.Blueprint.FallbackUnitWidth)
		before := len(blueprint.NewParser(grammar).ParseDocument(text).Chapters)
		updated := grammar.RemoveRanges(text, ranges...)
		after := len(blueprint.NewParser(grammar).ParseDocument(updated).Chapters)
		if err := a.store.Save(ctx, novelID, updated); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已删除 %d 个章节\n", before-after)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:     "check",
	Short:   "Run continuity, unit, cultivation, spatial and foreshadowing checks on the blueprint",
	PreRunE: requireNovel,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		text, err := a.store.Load(ctx, novelID)
		if err != nil {
			return err
		}
		grammar := blueprint.NewGrammar(a.cfg.Blueprint.FallbackUnitWidth)
		doc := blueprint.NewParser(grammar).ParseDocument(text)
		rng := entity.NewGenerationRange(docFlags.start, docFlags.end)
		report := validate.NewValidator(grammar, nil).CheckDocument(doc, rng)

		if docFlags.fix && report.Changed {
			doc.Chapters = report.Fixed
			if err := a.store.Save(ctx, novelID, grammar.RenderDocument(doc)); err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()
		if jsonOut {
			return writeJSON(out, report)
		}
		fmt.Fprintf(out, "检查区间 %s\n", report.Range)
		printWarnings(out, report.Warnings)
		if docFlags.fix && report.Changed {
			fmt.Fprintln(out, "修为修正已写回目录")
		}
		return nil
	},
}

var trackCmd = &cobra.Command{
	Use:     "track",
	Short:   "Report the foreshadowing lifecycle across the blueprint",
	PreRunE: requireNovel,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		text, err := a.store.Load(ctx, novelID)
		if err != nil {
			return err
		}
		doc := blueprint.NewParser(blueprint.NewGrammar(a.cfg.Blueprint.FallbackUnitWidth)).ParseDocument(text)
		report := validate.TrackForeshadowing(doc.Chapters)

		out := cmd.OutOrStdout()
		if jsonOut {
			return writeJSON(out, report)
		}
		for _, item := range report.Items {
			state := "未回收"
			if item.Resolved() {
				state = fmt.Sprintf("第%d章回收", item.ResolvedAt)
			}
			fmt.Fprintf(out, "%s：第%d章埋设，强化 %v，%s\n", item.Name, item.BuriedAt, item.ReinforcedAt, state)
		}
		printWarnings(out, report.Warnings)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show",
	Short:   "Print one chapter and its unit; a placeholder is printed for missing chapters",
	PreRunE: requireNovel,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		text, err := a.store.Load(ctx, novelID)
		if err != nil {
			return err
		}
		parser := blueprint.NewParser(blueprint.NewGrammar(a.cfg.Blueprint.FallbackUnitWidth))
		chapter := parser.GetChapter(text, docFlags.chapter)
		unit, hasUnit := parser.GetUnitForChapter(text, docFlags.chapter)

		out := cmd.OutOrStdout()
		if jsonOut {
			view := struct {
				Chapter entity.ChapterRecord `json:"chapter"`
				Unit    *entity.UnitRecord   `json:"unit,omitempty"`
			}{Chapter: chapter}
			if hasUnit {
				view.Unit = &unit
			}
			return writeJSON(out, view)
		}
		if hasUnit {
			fmt.Fprintln(out, blueprint.FormatUnit(unit))
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, blueprint.FormatChapter(chapter))
		return nil
	},
}

func init() {
	removeCmd.Flags().StringSliceVar(&docFlags.ranges, "range", nil, "Chapter range a-b, repeatable")
	_ = removeCmd.MarkFlagRequired("range")

	checkCmd.Flags().IntVar(&docFlags.start, "start", 0, "First chapter to check (default 1)")
	checkCmd.Flags().IntVar(&docFlags.end, "end", 0, "Last chapter to check (default last chapter)")
	checkCmd.Flags().BoolVar(&docFlags.fix, "fix", false, "Write cultivation corrections back")

	showCmd.Flags().IntVar(&docFlags.chapter, "chapter", 0, "Chapter number")
	_ = showCmd.MarkFlagRequired("chapter")
}

func printWarnings(out io.Writer, warnings []validate.Warning) {
	if len(warnings) == 0 {
		fmt.Fprintln(out, "没有发现问题")
		return
	}
	for _, w := range warnings {
		fmt.Fprintln(out, w.String())
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
