package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"z-novel-blueprint/internal/application/blueprint/generator"
)

var genFlags struct {
	start, end, total int
	fill              bool
	unitPolicy        string
	guidance          string
	requirements      string
	stream            bool
}

var generateCmd = &cobra.Command{
	Use:     "generate",
	Short:   "Generate (or regenerate) chapters [start, end] and merge them into the blueprint",
	PreRunE: requireNovel,
	RunE: func(cmd *cobra.Command, _ []string) error {
		req := baseRequest()
		req.Start = genFlags.start
		req.End = genFlags.end
		return runGeneration(cmd, req, func(g *generator.Generator, ctx context.Context, r generator.Request) (*generator.Result, error) {
			return g.GenerateRange(ctx, r)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:     "resume",
	Short:   "Continue the blueprint from the last chapter up to --total",
	PreRunE: requireNovel,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runGeneration(cmd, baseRequest(), func(g *generator.Generator, ctx context.Context, r generator.Request) (*generator.Result, error) {
			return g.GenerateAll(ctx, r)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, resumeCmd} {
		f := c.Flags()
		f.IntVar(&genFlags.total, "total", 0, "Total number of chapters of the novel")
		f.StringVar(&genFlags.unitPolicy, "unit-policy", "", "Unit policy: reuse, regenerate or none (default from config)")
		f.StringVar(&genFlags.guidance, "guidance", "", "User guidance passed to the model")
		f.StringVar(&genFlags.requirements, "requirements", "", "Extra generation requirements")
		f.BoolVar(&genFlags.stream, "stream", false, "Print model output while it is generated")
	}
	generateCmd.Flags().IntVar(&genFlags.start, "start", 0, "First chapter to generate")
	generateCmd.Flags().IntVar(&genFlags.end, "end", 0, "Last chapter to generate")
	generateCmd.Flags().BoolVar(&genFlags.fill, "fill", false, "Keep existing chapters in the range and only fill the gaps")
	_ = generateCmd.MarkFlagRequired("start")
	_ = generateCmd.MarkFlagRequired("end")
	_ = resumeCmd.MarkFlagRequired("total")
}

func baseRequest() generator.Request {
	req := generator.Request{
		NovelID:                novelID,
		TotalChapters:          genFlags.total,
		UnitPolicy:             genFlags.unitPolicy,
		UserGuidance:           genFlags.guidance,
		GenerationRequirements: genFlags.requirements,
	}
	if genFlags.fill {
		req.Mode = generator.ModeFill
	}
	return req
}

type generateFunc func(*generator.Generator, context.Context, generator.Request) (*generator.Result, error)

func runGeneration(cmd *cobra.Command, req generator.Request, run generateFunc) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	gen, err := a.generator()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	req.OnProgress = progressPrinter(out, cmd.ErrOrStderr())

	res, err := run(gen, ctx, req)
	if res != nil {
		if perr := printResult(out, res); perr != nil {
			return perr
		}
	}
	return err
}

// progressPrinter 模型输出写 stdout，进度与警告写 stderr
func progressPrinter(out, errOut io.Writer) func(generator.Event) {
	return func(ev generator.Event) {
		switch ev.Kind {
		case generator.EventText:
			if genFlags.stream && !jsonOut {
				fmt.Fprint(out, ev.Text)
			}
		case generator.EventChunkStart:
			fmt.Fprintf(errOut, "→ 生成 %s\n", ev.Range)
		case generator.EventChunkSkip:
			fmt.Fprintf(errOut, "↷ 跳过 %s（已完整）\n", ev.Range)
		case generator.EventChunkDone:
			if genFlags.stream && !jsonOut {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(errOut, "✓ 完成 %s\n", ev.Range)
		case generator.EventUnits:
			fmt.Fprintf(errOut, "✓ 单元已生成 %s\n", ev.Range)
		case generator.EventWarning:
			fmt.Fprintf(errOut, "! %s\n", ev.Text)
		}
	}
}

func printResult(out io.Writer, res *generator.Result) error {
	if jsonOut {
		return writeJSON(out, res)
	}
	fmt.Fprintf(out, "区间 %s（请求 %s）\n", res.Range, res.Requested)
	fmt.Fprintf(out, "写入章节 %d 个，跳过子区间 %d 个，警告 %d 条\n", len(res.Written), len(res.Skipped), len(res.Warnings))
	if len(res.UnitsGenerated) > 0 {
		fmt.Fprintf(out, "新生成单元 %d 个\n", len(res.UnitsGenerated))
	}
	for _, item := range res.Foreshadow.Unresolved {
		fmt.Fprintf(out, "未回收伏笔：%s（第%d章埋设）\n", item.Name, item.BuriedAt)
	}
	return nil
}
