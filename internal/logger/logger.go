package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/MrSnakeDoc/srcwatch/internal/printer"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string    // "debug","info","warn","error"
	JSON  bool      // JSON output (CI)
	Color bool      // colorize (console)
	Out   io.Writer // default os.Stdout
}

// FileOptions configures the rotating run log. Every level is written there.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

var (
	mu       sync.RWMutex
	zlog     *zap.SugaredLogger
	flog     = zap.NewNop().Sugar()
	sink     *lumberjack.Logger
	out      io.Writer = os.Stdout
	p        *printer.ColorPrinter
	curLevel = zapcore.InfoLevel
	ready    atomic.Bool
)

// Configure sets up the global console logger. The file sink is left as is.
func Configure(opts Options) {
	mu.Lock()
	defer mu.Unlock()
	configureLocked(opts)
}

func configureLocked(opts Options) {
	if opts.Out != nil {
		out = opts.Out
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.LevelKey = ""
	encCfg.CallerKey = ""
	encCfg.MessageKey = "msg"

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(zapcore.EncoderConfig{MessageKey: "msg"})
	}

	level := parseLevel(opts.Level)
	ws := zapcore.AddSync(writerAdapter{out})
	core := zapcore.NewCore(enc, ws, level)

	zlog = zap.New(core).Sugar()

	if p == nil {
		p = printer.NewColorPrinter()
	}

	ready.Store(true)
}

// EnableFile adds a JSON lines sink rotated by lumberjack.
func EnableFile(opts FileOptions) error {
	if opts.Path == "" {
		return fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(opts.Path), err)
	}

	mu.Lock()
	defer mu.Unlock()

	closeFileLocked()
	sink = &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		LocalTime:  true,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(sink), zapcore.DebugLevel)
	flog = zap.New(core).Sugar()
	return nil
}

// CloseFile flushes and detaches the file sink.
func CloseFile() {
	mu.Lock()
	defer mu.Unlock()
	closeFileLocked()
}

func closeFileLocked() {
	_ = flog.Sync()
	if sink != nil {
		_ = sink.Close()
		sink = nil
	}
	flog = zap.NewNop().Sugar()
}

// SetLevel adjusts current level at runtime ("debug","info","warn","error").
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	configureLocked(Options{Level: level, Out: out})
}

// SetOutput replaces the logger writer (use io.Discard in tests).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	configureLocked(Options{Level: curLevel.String(), Out: w})
}

// UseTestMode silences logs during tests.
func UseTestMode() {
	CloseFile()
	Configure(Options{
		Level: "error", // only errors
		Color: false,
		JSON:  false,
		Out:   io.Discard,
	})
}

// Out returns the current output writer (for tables).
func Out() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return out
}

// ---- Public logging API ----

func Info(msg string, args ...interface{}) {
	if !ensureReady() {
		return
	}
	mu.RLock()
	zlog.Info(p.Info("✨ "+msg, args...))
	flog.Infof(msg, args...)
	mu.RUnlock()
}

func Success(msg string, args ...interface{}) {
	if !ensureReady() {
		return
	}
	mu.RLock()
	zlog.Info(p.Success("✅ "+msg, args...))
	flog.Infof(msg, args...)
	mu.RUnlock()
}

func LogError(msg string, args ...interface{}) {
	if !ensureReady() {
		return
	}
	mu.RLock()
	zlog.Error(p.Error("❌ "+msg, args...))
	flog.Errorf(msg, args...)
	mu.RUnlock()
}

func Warn(msg string, args ...interface{}) {
	if !ensureReady() {
		return
	}
	mu.RLock()
	zlog.Warn(p.Warning("⚠️ "+msg, args...))
	flog.Warnf(msg, args...)
	mu.RUnlock()
}

func Debug(msg string, args ...interface{}) {
	if !ensureReady() {
		return
	}
	mu.RLock()
	zlog.Debug(p.Debug("🛠️ "+msg, args...))
	flog.Debugf(msg, args...)
	mu.RUnlock()
}

// Event writes one structured line. The console only sees it at debug level.
func Event(msg string, keysAndValues ...interface{}) {
	if !ensureReady() {
		return
	}
	mu.RLock()
	zlog.Debugw(p.Debug("🛠️ "+msg), keysAndValues...)
	flog.Infow(msg, keysAndValues...)
	mu.RUnlock()
}

// ---- Tables ----

// CreateTable renders to w, or to the logger output when w is nil.
func CreateTable(w io.Writer, headers []string) *tablewriter.Table {
	if w == nil {
		w = Out()
	}
	t := tablewriter.NewTable(w)
	t.Header(headers)
	return t
}

// ---- internals ----

type writerAdapter struct{ w io.Writer }

func (wa writerAdapter) Write(p []byte) (int, error) { return wa.w.Write(p) }

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		curLevel = zapcore.DebugLevel
	case "info", "":
		curLevel = zapcore.InfoLevel
	case "warn":
		curLevel = zapcore.WarnLevel
	case "error":
		curLevel = zapcore.ErrorLevel
	default:
		curLevel = zapcore.InfoLevel
	}
	return curLevel
}

func ensureReady() bool {
	if !ready.Load() {
		return false
	}
	if p == nil || zlog == nil {
		return false
	}
	return true
}
