package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"mojifix/pkg/contract"
)

const (
	// EnvPrefix: 环境变量前缀，键中的 '.' 换为 '_'（例如 MOJIFIX_LOGGING_LEVEL）。
	EnvPrefix = "MOJIFIX"
	// EnvConfigFile: 指定配置文件路径的环境变量。
	EnvConfigFile = "MOJIFIX_CONFIG_FILE"
	// DefaultFile: 工作目录下存在时自动读取。
	DefaultFile = "mojifix.yaml"
)

// Defaults 返回带有安全默认值的 Config。
// 默认链只做编码层面的修复；terms/transliterate 需显式启用。
func Defaults() Config {
	return Config{
		Inputs:      []string{"."},
		Concurrency: 4,
		Logging:     Logging{Level: "info", Format: "json", Dir: "logs"},
		Reader:      Component{Name: "fs"},
		Decode:      Decode{Fallbacks: []string{"windows-1252", "latin1"}},
		Encode:      Encode{BOM: "always"},
		Fixers:      []Component{{Name: "header"}, {Name: "mojibake"}},
		Writer:      Component{Name: "fs"},
		Audit:       Audit{Enabled: true, From: "U+0100", To: "U+FFFF"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("inputs", d.Inputs)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("dry_run", d.DryRun)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.dir", d.Logging.Dir)

	v.SetDefault("reader.name", d.Reader.Name)
	v.SetDefault("writer.name", d.Writer.Name)
	v.SetDefault("decode.fallbacks", d.Decode.Fallbacks)
	v.SetDefault("encode.bom", d.Encode.BOM)

	fixers := make([]map[string]any, len(d.Fixers))
	for i, f := range d.Fixers {
		fixers[i] = map[string]any{"name": f.Name}
	}
	v.SetDefault("fixers", fixers)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.from", d.Audit.From)
	v.SetDefault("audit.to", d.Audit.To)
}

// ResolvePath 决定要读取的配置文件：显式路径 > MOJIFIX_CONFIG_FILE > ./mojifix.yaml（若存在）。
// 返回空串表示只用默认值与 ENV。
func ResolvePath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

// Load 按 默认值 < 配置文件 < ENV 的顺序得到 Config；CLI 覆盖由调用方通过 Merge 施加。
// 文件格式按扩展名识别（yaml/json/toml）；未知键报错。
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var perr *os.PathError
			if errors.As(err, &perr) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
			return Config{}, fmt.Errorf("%w: read config %s: %v", contract.ErrInvalidInput, path, err)
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decode config: %v", contract.ErrInvalidInput, err)
	}
	return cfg, nil
}

// Merge 按优先级合并（over 覆盖 base）。
// 零值视为未设置；组件与列表整体替换，不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.DryRun {
		out.DryRun = true
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Format); s != "" {
		out.Logging.Format = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}
	if over.Reader.Name != "" {
		out.Reader = over.Reader
	}
	if over.Writer.Name != "" {
		out.Writer = over.Writer
	}
	if over.Decode.Fallbacks != nil {
		out.Decode.Fallbacks = cloneStrings(over.Decode.Fallbacks)
	}
	if s := strings.TrimSpace(over.Encode.BOM); s != "" {
		out.Encode.BOM = s
	}
	if len(over.Fixers) > 0 {
		out.Fixers = append([]Component(nil), over.Fixers...)
	}
	if over.Audit.From != "" {
		out.Audit.From = over.Audit.From
	}
	if over.Audit.To != "" {
		out.Audit.To = over.Audit.To
	}
	return out
}

// SelectFixers 按给定顺序挑选 fixer：已在配置中出现的沿用其 options，否则使用默认选项。
func SelectFixers(cfg Config, names []string) []Component {
	var out []Component
	for _, n := range splitComma(strings.Join(names, ",")) {
		c := Component{Name: n}
		for _, f := range cfg.Fixers {
			if f.Name == n {
				c = f
				break
			}
		}
		out = append(out, c)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
