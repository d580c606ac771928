package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "mojifix/internal/config"
	"mojifix/internal/diag"
	"mojifix/internal/pipeline"
)

var pipelineRun = pipeline.Run

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

type cliFlags struct {
	config      string
	concurrency int
	dryRun      bool
	fixers      []string
	logLevel    string
	status      bool
}

// 默认子命令 run。
// 位置参数为 roots（文件/目录 或 "-" 表示 STDIN，不能与其他根混用）。
func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = godotenv.Load(".env")

	code := exitOK
	root := newRootCmd(stdout, stderr, &code)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fprintf(stderr, "参数错误: %v\n", err)
		return exitConfig
	}
	return code
}

func newRootCmd(stdout, stderr io.Writer, code *int) *cobra.Command {
	f := &cliFlags{}
	runFn := func(scan bool) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, args []string) error {
			*code = runPipeline(scan, args, f, stdout, stderr)
			return nil
		}
	}

	root := &cobra.Command{
		Use:           "mojifix [roots...]",
		Short:         "修复源码树中的乱码（mojibake）、文件头垃圾与 BOM",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runFn(false),
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&f.config, "config", "", "配置文件路径（yaml/json/toml）；缺省读取 MOJIFIX_CONFIG_FILE 或 ./mojifix.yaml")
	pf.IntVar(&f.concurrency, "concurrency", 0, "并发度（覆盖配置）")
	pf.BoolVar(&f.dryRun, "dry-run", false, "只报告将要修改的文件，不写出")
	pf.StringSliceVar(&f.fixers, "fixers", nil, "按顺序启用的 fixer，逗号分隔（覆盖配置）")
	pf.StringVar(&f.logLevel, "log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")
	pf.BoolVar(&f.status, "status", true, "终端状态提示（stderr）")

	root.AddCommand(
		&cobra.Command{
			Use:   "run [roots...]",
			Short: "修复并写回（默认子命令）",
			Args:  cobra.ArbitraryArgs,
			RunE:  runFn(false),
		},
		&cobra.Command{
			Use:   "scan [roots...]",
			Short: "只检查残留字符，不修复、不写出",
			Args:  cobra.ArbitraryArgs,
			RunE:  runFn(true),
		},
		&cobra.Command{
			Use:   "init-config [dir]",
			Short: "生成 mojifix.yaml 与 .env 模板（已存在则跳过，不覆盖）",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				dir := "."
				if len(args) == 1 {
					dir = args[0]
				}
				*code = initConfig(dir, stdout, stderr)
				return nil
			},
		},
	)
	return root
}

func initConfig(dir string, stdout, stderr io.Writer) int {
	written, skipped, err := cfgpkg.WriteTemplates(dir)
	if err != nil {
		fprintf(stderr, "生成默认配置失败: %v\n", err)
		return exitConfig
	}
	for _, p := range written {
		fprintf(stdout, "已生成: %s\n", p)
	}
	for _, p := range skipped {
		fprintf(stdout, "已存在，跳过: %s\n", p)
	}
	return exitOK
}

func runPipeline(scan bool, roots []string, f *cliFlags, stdout, stderr io.Writer) int {
	start := time.Now()
	corrID := uuid.NewString()

	cfg, err := cfgpkg.Load(cfgpkg.ResolvePath(f.config))
	if err != nil {
		fprintf(stderr, "配置解析失败: %v\n", err)
		return exitConfig
	}

	// CLI 覆盖
	over := cfgpkg.Config{
		Inputs:      roots,
		Concurrency: f.concurrency,
		DryRun:      f.dryRun,
		Logging:     cfgpkg.Logging{Level: f.logLevel},
	}
	if len(f.fixers) > 0 {
		over.Fixers = cfgpkg.SelectFixers(cfg, f.fixers)
	}
	cfg = cfgpkg.Merge(cfg, over)

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(stderr, "配置校验失败: %v\n", err)
		dumpConfig(stderr, cfg)
		return exitConfig
	}
	if scan {
		set.ScanOnly = true
		set.Audit = true
	}

	logger, err := diag.NewLogger(corrID, diag.LoggerOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Dir:    cfg.Logging.Dir,
	})
	if err != nil {
		fprintf(stderr, "日志初始化失败: %v\n", err)
		return exitConfig
	}
	defer func() { _ = logger.Close() }()

	mode := "run"
	switch {
	case set.ScanOnly:
		mode = "scan"
	case set.DryRun:
		mode = "dry-run"
	}

	term := diag.NewTerminal(stderr, f.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	term.RunStart(set.Concurrency, mode)

	logger.DebugStart("config", "effective", "", map[string]string{
		"mode":        mode,
		"inputs":      strings.Join(set.Inputs, ","),
		"concurrency": strconv.Itoa(set.Concurrency),
		"reader":      cfg.Reader.Name,
		"writer":      cfg.Writer.Name,
		"fixers":      fixerNames(cfg.Fixers),
		"fallbacks":   strings.Join(set.Fallbacks, ","),
		"bom":         string(set.BOM),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := logger.Start("pipeline", "run")
	rep, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		code := diag.Classify(err)
		logger.Error("pipeline", string(code), "first error", &start)
		diag.IncOp("pipeline", "error", "error")
		if code != diag.CodeUnknown {
			diag.IncError("pipeline", string(code))
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(stderr, "运行失败: %v\n", err)
		}
		term.RunFinish(false, time.Since(start))
		return exitRuntime
	}

	// STDIN 模式下 stdout 已被修复结果占用，报告改写到 stderr。
	out := stdout
	if len(set.Inputs) == 1 && set.Inputs[0] == "-" {
		out = stderr
	}
	if err := rep.WriteText(out); err != nil {
		logger.Error("report", string(diag.Classify(err)), "write report", &start)
	}

	failed := rep.Count(pipeline.StatusFailed)
	t.Finish("run", int64(len(rep.Files)))
	diag.IncOp("pipeline", "finish", resultLabel(failed == 0))
	diag.ObserveDuration("pipeline", "finish", time.Since(start).Milliseconds())
	for _, m := range diag.Snapshot() {
		logger.DebugStart("metrics", m.Name, "", map[string]string{"key": m.Key, "value": strconv.FormatInt(m.Value, 10)})
	}
	term.RunFinish(failed == 0, time.Since(start))
	if failed > 0 {
		return exitRuntime
	}
	return exitOK
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func fixerNames(cs []cfgpkg.Component) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return strings.Join(names, ",")
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

// dumpConfig 打印有效配置，便于诊断校验失败。
func dumpConfig(w io.Writer, c cfgpkg.Config) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return
	}
	fprintf(w, "有效配置:\n%s", b)
}
