package config

import (
	"fmt"
	"strings"

	"mojifix/internal/audit"
	"mojifix/internal/pipeline"
	"mojifix/internal/textenc"
	"mojifix/pkg/contract"
	"mojifix/pkg/registry"
)

func invalid(format string, a ...any) error {
	return fmt.Errorf("%w: config: %s", contract.ErrInvalidInput, fmt.Sprintf(format, a...))
}

// Validate 对最小必要边界做静态校验；组件 options 的严格校验在 Assemble 中由工厂完成。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return invalid("inputs empty")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		switch strings.TrimSpace(r) {
		case "":
			return invalid("input path cannot be empty")
		case "-":
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return invalid("'-' cannot be mixed with other roots")
	}
	if cfg.Concurrency < 1 {
		return invalid("concurrency must be >= 1")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("logging.level %q", cfg.Logging.Level)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "", "json", "console":
	default:
		return invalid("logging.format %q", cfg.Logging.Format)
	}
	if registry.Reader[effName(cfg.Reader.Name, "fs")] == nil {
		return fmt.Errorf("%w: reader %q", contract.ErrUnknownComponent, cfg.Reader.Name)
	}
	if registry.Writer[effName(cfg.Writer.Name, "fs")] == nil {
		return fmt.Errorf("%w: writer %q", contract.ErrUnknownComponent, cfg.Writer.Name)
	}
	for i, f := range cfg.Fixers {
		if registry.Fixer[f.Name] == nil {
			return fmt.Errorf("%w: fixers[%d] %q (known: %s)", contract.ErrUnknownComponent, i, f.Name,
				strings.Join(registry.FixerNames(), ", "))
		}
	}
	for _, name := range cfg.Decode.Fallbacks {
		if _, err := textenc.Lookup(name); err != nil {
			return fmt.Errorf("config: decode.fallbacks: %w", err)
		}
	}
	if _, err := textenc.ParseBOMPolicy(cfg.Encode.BOM); err != nil {
		return fmt.Errorf("config: encode.bom: %w", err)
	}
	if _, err := audit.ParseRange(cfg.Audit.From, cfg.Audit.To); err != nil {
		return fmt.Errorf("config: audit: %w", err)
	}
	return nil
}

// Assemble 校验配置并通过注册表构造 Components 与 Settings。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	r, err := registry.Reader[effName(cfg.Reader.Name, "fs")](cfg.Reader.Options)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader: %w", err)
	}
	w, err := registry.Writer[effName(cfg.Writer.Name, "fs")](cfg.Writer.Options)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer: %w", err)
	}
	fixers := make([]contract.Fixer, 0, len(cfg.Fixers))
	for _, f := range cfg.Fixers {
		fx, err := registry.BuildFixer(f.Name, f.Options)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, err
		}
		fixers = append(fixers, fx)
	}

	bomPolicy, _ := textenc.ParseBOMPolicy(cfg.Encode.BOM)
	rg, _ := audit.ParseRange(cfg.Audit.From, cfg.Audit.To)
	comp := pipeline.Components{Reader: r, Fixers: fixers, Writer: w}
	set := pipeline.Settings{
		Inputs:      cloneStrings(cfg.Inputs),
		Concurrency: cfg.Concurrency,
		DryRun:      cfg.DryRun,
		Fallbacks:   cloneStrings(cfg.Decode.Fallbacks),
		BOM:         bomPolicy,
		Audit:       cfg.Audit.Enabled,
		AuditRange:  rg,
	}
	return comp, set, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
