package config

// Config: 运行期只读配置（一次解析，运行期不变）。
// 键使用 snake_case；未知键在解析期失败。
type Config struct {
	Inputs      []string `mapstructure:"inputs" yaml:"inputs"`
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`
	// DryRun: 只报告，不写出。
	DryRun  bool    `mapstructure:"dry_run" yaml:"dry_run"`
	Logging Logging `mapstructure:"logging" yaml:"logging"`

	Reader Component `mapstructure:"reader" yaml:"reader"`
	Decode Decode    `mapstructure:"decode" yaml:"decode"`
	Encode Encode    `mapstructure:"encode" yaml:"encode"`
	// Fixers: 按顺序执行的修复器链。
	Fixers []Component `mapstructure:"fixers" yaml:"fixers"`
	Writer Component   `mapstructure:"writer" yaml:"writer"`
	Audit  Audit       `mapstructure:"audit" yaml:"audit"`
}

// Logging: 日志级别、格式与目录（"-" 表示 stderr）。
type Logging struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir"`
}

// Component: 注册表中的实现名与原样 options，严格解析在 registry 层进行。
type Component struct {
	Name    string         `mapstructure:"name" yaml:"name"`
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// Decode: 非 UTF-8 文件的回退编码（依序尝试）。
type Decode struct {
	Fallbacks []string `mapstructure:"fallbacks" yaml:"fallbacks"`
}

// Encode: 写出策略。
type Encode struct {
	// BOM: always | preserve | strip
	BOM string `mapstructure:"bom" yaml:"bom"`
}

// Audit: 残留字符检查。
type Audit struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	From    string `mapstructure:"from" yaml:"from"`
	To      string `mapstructure:"to" yaml:"to"`
}
