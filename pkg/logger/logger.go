package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the console logger of a vixsrc binary
type Config struct {
	Level      string // debug, info, warn, error; unknown values mean info
	Format     string // json or console
	OutputPath string // stderr (default), stdout or a file path
}

// New builds the console logger. It writes to stderr unless told otherwise,
// leaving stdout to manifest URLs and batch summaries. Level colors are only
// used when the console format goes to a terminal.
func New(config Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	out, tty, err := openOutput(config.OutputPath)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(config.Format, tty), out, level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func newEncoder(format string, color bool) zapcore.Encoder {
	if format == "json" {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "timestamp"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(ec)
	}

	ec := zap.NewDevelopmentEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	if color {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(ec)
}

// openOutput resolves the output path and reports whether it is a terminal
func openOutput(path string) (zapcore.WriteSyncer, bool, error) {
	var file *os.File
	switch path {
	case "", "stderr":
		file = os.Stderr
	case "stdout":
		file = os.Stdout
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, false, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, false, fmt.Errorf("failed to open log file: %w", err)
		}
		return zapcore.AddSync(f), false, nil
	}

	fd := file.Fd()
	return zapcore.Lock(file), isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd), nil
}
