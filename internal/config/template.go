package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultTemplateConfig 返回一个可直接运行的完整配置模板：
// - 默认输入为当前目录，原地改写；
// - 列出每个组件的全部 options 键，值为中性默认；
// - fixer 链只含默认启用的两项；terms/transliterate 的写法见文件头注释。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Reader.Options = map[string]any{
		"extensions":        []string{".cshtml", ".cs", ".js"},
		"exclude_dir_names": []string{"bin", "obj"},
		"include":           []string{},
		"exclude":           []string{},
		"buf_size":          65536,
	}
	cfg.Writer.Options = map[string]any{
		"output_dir": "",
		"atomic":     true,
		"perm_file":  0,
		"perm_dir":   0,
		"buf_size":   65536,
	}
	cfg.Fixers = []Component{
		{Name: "header", Options: map[string]any{
			"strategies":     []string{"known"},
			"extra_patterns": []string{},
			"anchors":        []string{},
			"allow_exts":     []string{},
		}},
		{Name: "mojibake", Options: map[string]any{
			"encoding":    "windows-1252",
			"max_layers":  5,
			"granularity": "text",
			"cache_size":  4096,
			"allow_exts":  []string{},
		}},
	}
	return cfg
}

const templateHeader = `# mojifix 配置模板（由 init-config 生成）
# 优先级：CLI > ENV(MOJIFIX_*) > 本文件 > 默认值；未知键会报错。
# 可选 fixer（追加到 fixers 列表即可启用）：
#   - name: terms
#     options: {builtin: [vi-en, vi-en-garbled], table_path: "", inline: [], allow_exts: []}
#   - name: transliterate
#     options: {allow_exts: []}
# encode.bom: always | preserve | strip
`

// envTemplate: .env 模板（只含注释，不改变行为）。
const envTemplate = `# mojifix 环境变量（不会覆盖已存在的同名变量）
# MOJIFIX_CONFIG_FILE=mojifix.yaml
# MOJIFIX_CONCURRENCY=4
# MOJIFIX_DRY_RUN=false
# MOJIFIX_LOGGING_LEVEL=info
# MOJIFIX_LOGGING_DIR=logs
# MOJIFIX_DECODE_FALLBACKS=windows-1252,latin1
# MOJIFIX_ENCODE_BOM=always
`

// RenderTemplate 渲染 YAML 模板（含说明头）。
func RenderTemplate(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTemplates 在 dir 下生成 mojifix.yaml 与 .env；已存在的文件跳过，不覆盖。
// 返回实际写出的路径与被跳过的路径。
func WriteTemplates(dir string) (written, skipped []string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	body, err := RenderTemplate(DefaultTemplateConfig())
	if err != nil {
		return nil, nil, err
	}
	for _, f := range []struct {
		name string
		data []byte
	}{
		{DefaultFile, body},
		{".env", []byte(envTemplate)},
	} {
		p := filepath.Join(dir, f.name)
		ok, werr := writeExclusive(p, f.data)
		if werr != nil {
			return written, skipped, werr
		}
		if ok {
			written = append(written, p)
		} else {
			skipped = append(skipped, p)
		}
	}
	return written, skipped, nil
}

// writeExclusive 仅在文件不存在时写入；已存在返回 false。
func writeExclusive(path string, data []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return false, err
	}
	return true, f.Close()
}
