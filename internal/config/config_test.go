package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mojifix/internal/audit"
	"mojifix/internal/textenc"
	"mojifix/pkg/contract"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

// 无文件时等于默认值
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	require.NoError(t, Validate(cfg))
}

// 解析 YAML 文件，未出现的键保留默认
func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "mojifix.yaml", `
inputs: [src]
concurrency: 2
logging: {level: debug}
reader:
  name: fs
  options: {extensions: [.cshtml], exclude_dir_names: [bin, obj, node_modules]}
fixers:
  - name: header
    options: {strategies: [known, anchor]}
  - name: terms
    options: {builtin: [vi-en]}
encode: {bom: preserve}
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"src"}, cfg.Inputs)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format, "未设置的键保留默认")
	assert.Equal(t, "preserve", cfg.Encode.BOM)
	assert.Equal(t, []string{"windows-1252", "latin1"}, cfg.Decode.Fallbacks)
	require.Len(t, cfg.Fixers, 2)
	assert.Equal(t, "terms", cfg.Fixers[1].Name)
	assert.Equal(t, []any{"vi-en"}, cfg.Fixers[1].Options["builtin"])

	comp, set, err := Assemble(cfg)
	require.NoError(t, err)
	assert.Len(t, comp.Fixers, 2)
	assert.Equal(t, textenc.BOMPreserve, set.BOM)
	assert.Equal(t, audit.DefaultRange, set.AuditRange)
}

// JSON 与 TOML 按扩展名识别
func TestLoadOtherFormats(t *testing.T) {
	cfg, err := Load(writeFile(t, "c.json", `{"concurrency": 7, "audit": {"enabled": false}}`))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Concurrency)
	assert.False(t, cfg.Audit.Enabled)

	cfg, err = Load(writeFile(t, "c.toml", "concurrency = 3\n[logging]\nformat = \"console\"\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, "console", cfg.Logging.Format)
}

// 未知键与缺失文件
func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "c.yaml", "unknown: 1\n"))
	assert.True(t, errors.Is(err, contract.ErrInvalidInput), "%v", err)

	_, err = Load(writeFile(t, "c.yaml", "logging: {colour: red}\n"))
	assert.True(t, errors.Is(err, contract.ErrInvalidInput), "%v", err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "c.ini2", "x"))
	assert.True(t, errors.Is(err, contract.ErrInvalidInput), "%v", err)
}

// ENV 覆盖文件
func TestLoadEnvOverlay(t *testing.T) {
	p := writeFile(t, "c.yaml", "concurrency: 2\n")
	t.Setenv("MOJIFIX_CONCURRENCY", "9")
	t.Setenv("MOJIFIX_INPUTS", "a,b")
	t.Setenv("MOJIFIX_LOGGING_LEVEL", "warn")
	t.Setenv("MOJIFIX_DRY_RUN", "true")
	t.Setenv("MOJIFIX_DECODE_FALLBACKS", "latin1,windows-1252")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Concurrency)
	assert.Equal(t, []string{"a", "b"}, cfg.Inputs)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, []string{"latin1", "windows-1252"}, cfg.Decode.Fallbacks)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "x.yaml", ResolvePath(" x.yaml "))
	t.Setenv(EnvConfigFile, "env.yaml")
	assert.Equal(t, "env.yaml", ResolvePath(""))

	t.Setenv(EnvConfigFile, "")
	dir := t.TempDir()
	t.Chdir(dir)
	assert.Equal(t, "", ResolvePath(""))
	require.NoError(t, os.WriteFile(DefaultFile, []byte("{}"), 0o644))
	assert.Equal(t, DefaultFile, ResolvePath(""))
}

func TestMerge(t *testing.T) {
	base := Defaults()
	out := Merge(base, Config{})
	assert.Equal(t, base, out, "空覆盖不改变任何值")

	over := Config{
		Inputs:      []string{"x"},
		Concurrency: 8,
		DryRun:      true,
		Logging:     Logging{Level: " debug "},
		Fixers:      []Component{{Name: "terms"}},
		Decode:      Decode{Fallbacks: []string{}},
	}
	out = Merge(base, over)
	assert.Equal(t, []string{"x"}, out.Inputs)
	assert.Equal(t, 8, out.Concurrency)
	assert.True(t, out.DryRun)
	assert.Equal(t, "debug", out.Logging.Level)
	assert.Equal(t, "json", out.Logging.Format)
	assert.Equal(t, []Component{{Name: "terms"}}, out.Fixers)
	assert.Empty(t, out.Decode.Fallbacks, "显式空列表关闭回退解码")

	over.Inputs[0] = "mutated"
	assert.Equal(t, []string{"x"}, out.Inputs, "合并结果不与输入共享底层数组")
}

func TestSelectFixers(t *testing.T) {
	cfg := Defaults()
	cfg.Fixers = []Component{{Name: "header", Options: map[string]any{"strategies": []any{"anchor"}}}, {Name: "mojibake"}}
	got := SelectFixers(cfg, []string{"terms, header", ""})
	require.Len(t, got, 2)
	assert.Equal(t, Component{Name: "terms"}, got[0])
	assert.Equal(t, cfg.Fixers[0], got[1], "沿用配置中的 options")
	assert.Nil(t, SelectFixers(cfg, nil))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"空输入", func(c *Config) { c.Inputs = nil }, contract.ErrInvalidInput},
		{"空路径", func(c *Config) { c.Inputs = []string{" "} }, contract.ErrInvalidInput},
		{"混用 -", func(c *Config) { c.Inputs = []string{"-", "a"} }, contract.ErrInvalidInput},
		{"并发 0", func(c *Config) { c.Concurrency = 0 }, contract.ErrInvalidInput},
		{"日志级别", func(c *Config) { c.Logging.Level = "loud" }, contract.ErrInvalidInput},
		{"日志格式", func(c *Config) { c.Logging.Format = "xml" }, contract.ErrInvalidInput},
		{"未知 reader", func(c *Config) { c.Reader.Name = "s3" }, contract.ErrUnknownComponent},
		{"未知 writer", func(c *Config) { c.Writer.Name = "s3" }, contract.ErrUnknownComponent},
		{"未知 fixer", func(c *Config) { c.Fixers = []Component{{Name: "spell"}} }, contract.ErrUnknownComponent},
		{"未知编码", func(c *Config) { c.Decode.Fallbacks = []string{"ebcdic"} }, contract.ErrUnknownEncoding},
		{"BOM 策略", func(c *Config) { c.Encode.BOM = "sometimes" }, contract.ErrInvalidInput},
		{"审计范围", func(c *Config) { c.Audit.From = "U+FFFF"; c.Audit.To = "U+0100" }, contract.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			assert.True(t, errors.Is(err, tt.want), "err=%v", err)
		})
	}
	cfg := Defaults()
	cfg.Inputs = []string{"-"}
	assert.NoError(t, Validate(cfg))
}

// 工厂层的严格 options 校验在 Assemble 中暴露
func TestAssembleBadOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Fixers = []Component{{Name: "mojibake", Options: map[string]any{"max_layer": 3}}}
	_, _, err := Assemble(cfg)
	assert.True(t, errors.Is(err, contract.ErrInvalidInput), "%v", err)

	cfg = Defaults()
	cfg.Reader.Options = map[string]any{"include": []any{"[bad"}}
	_, _, err = Assemble(cfg)
	assert.Error(t, err)
}

// 模板可以原样加载并装配
func TestTemplateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	written, skipped, err := WriteTemplates(dir)
	require.NoError(t, err)
	assert.Len(t, written, 2)
	assert.Empty(t, skipped)

	cfg, err := Load(filepath.Join(dir, DefaultFile))
	require.NoError(t, err)
	comp, set, err := Assemble(cfg)
	require.NoError(t, err)
	assert.Len(t, comp.Fixers, 2)
	assert.Equal(t, 4, set.Concurrency)
	assert.True(t, set.Audit)

	env, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(env), "MOJIFIX_CONFIG_FILE")

	// 第二次不覆盖
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("KEEP=1\n"), 0o644))
	written, skipped, err = WriteTemplates(dir)
	require.NoError(t, err)
	assert.Empty(t, written)
	assert.Len(t, skipped, 2)
	env, err = os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "KEEP=1\n", string(env))
}
