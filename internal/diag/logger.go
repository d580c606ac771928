package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mojifix/pkg/contract"
)

// StderrDir: LoggerOptions.Dir 取该值时日志写到 stderr 而不是文件。
const StderrDir = "-"

// LoggerOptions 为日志器的构造参数。
type LoggerOptions struct {
	Level  string // debug|info|warn|error，空取 info
	Format string // json|console，空取 json
	Dir    string // 轮转文件目录；"-" 表示 stderr；空取 logs
	// MaxBytes: 单个日志文件上限；<=0 取 10 MiB。
	MaxBytes int64
	// Writer: 非 nil 时直接写入该 Writer（测试用），忽略 Dir。
	Writer io.Writer
}

// Logger 为结构化日志器：zap 之上保持固定事件词汇
// （comp/stage/code/file_id/dur_ms/count/kv/corr_id）。
type Logger struct {
	z    *zap.Logger
	sink *RotatingFile
}

// NewLogger 按选项构造日志器；level/format 非法时返回 ErrInvalidInput。
func NewLogger(corrID string, opts LoggerOptions) (*Logger, error) {
	lvl := zap.NewAtomicLevel()
	level := strings.ToLower(strings.TrimSpace(opts.Level))
	if level == "" {
		level = "info"
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: log level %q", contract.ErrInvalidInput, opts.Level)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("%w: log format %q", contract.ErrInvalidInput, opts.Format)
	}

	l := &Logger{}
	var ws zapcore.WriteSyncer
	switch {
	case opts.Writer != nil:
		ws = zapcore.AddSync(opts.Writer)
	case strings.TrimSpace(opts.Dir) == StderrDir:
		ws = zapcore.Lock(os.Stderr)
	default:
		dir := strings.TrimSpace(opts.Dir)
		if dir == "" {
			dir = "logs"
		}
		l.sink = NewRotatingFile(dir, opts.MaxBytes)
		ws = l.sink
	}

	core := zapcore.NewCore(enc, ws, lvl)
	l.z = zap.New(core).With(zap.String("corr_id", corrID))
	return l, nil
}

// NewNop 返回丢弃一切输出的日志器。
func NewNop() *Logger { return &Logger{z: zap.NewNop()} }

// Close 刷新并关闭文件 sink。
func (l *Logger) Close() error {
	if l == nil || l.z == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

func kvField(kv map[string]string) zap.Field {
	if len(kv) == 0 {
		return zap.Skip()
	}
	return zap.Any("kv", kv)
}

func fileField(fileID string) zap.Field {
	if fileID == "" {
		return zap.Skip()
	}
	return zap.String("file_id", fileID)
}

func durField(durSince *time.Time) zap.Field {
	if durSince == nil {
		return zap.Skip()
	}
	return zap.Int64("dur_ms", time.Since(*durSince).Milliseconds())
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.z.Info(msg, zap.String("comp", comp), zap.String("stage", "start"))
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 file_id 的 start。
func (l *Logger) StartWith(comp, msg, fileID string) *Timer {
	l.z.Info(msg, zap.String("comp", comp), zap.String("stage", "start"), fileField(fileID))
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// StartWithKV 记录带 file_id 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, fileID string, kv map[string]string) *Timer {
	l.z.Info(msg, zap.String("comp", comp), zap.String("stage", "start"), fileField(fileID), kvField(kv))
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.z.Error(msg, zap.String("comp", comp), zap.String("stage", "error"), zap.String("code", code), durField(durSince))
}

// ErrorWith 支持 file_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID string) {
	l.z.Error(msg, zap.String("comp", comp), zap.String("stage", "error"), zap.String("code", code),
		durField(durSince), fileField(fileID))
}

// ErrorWithKV 支持附带键值对（例如尝试过的编码）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID string, kv map[string]string) {
	l.z.Error(msg, zap.String("comp", comp), zap.String("stage", "error"), zap.String("code", code),
		durField(durSince), fileField(fileID), kvField(kv))
}

// WarnWith 记录不中断运行的诊断（例如跳过的文件）。
func (l *Logger) WarnWith(comp, code, msg, fileID string) {
	l.z.Warn(msg, zap.String("comp", comp), zap.String("stage", "skip"), zap.String("code", code), fileField(fileID))
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.z.Info(msg, zap.String("comp", comp), zap.String("stage", "finish"),
		zap.Int64("dur_ms", time.Since(start).Milliseconds()), zap.Int64("count", count))
}

// DebugStart 输出调试级别的 start 类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID string, kv map[string]string) {
	l.z.Debug(msg, zap.String("comp", comp), zap.String("stage", "start"), fileField(fileID), kvField(kv))
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.z.Info(msg, zap.String("comp", t.comp), zap.String("stage", "finish"),
		zap.Int64("dur_ms", time.Since(t.t0).Milliseconds()), zap.Int64("count", count), fileField(t.fileID))
}

// Since 返回计时起点，供 Error 系列的 durSince 使用。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}
