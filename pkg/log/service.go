package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/gofilestore/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerService interface {
	Debug(msg string, args ...any)

	Info(msg string, args ...any)

	Warn(msg string, args ...any)

	Error(msg string, args ...any)

	Fatal(msg string, args ...any)

	Named(name string) LoggerService
}

type LoggerServiceImpl struct {
	LoggerService

	cfg   config.LogConfig
	name  string
	level LogLevel
	out   *output
}

// output is shared by a logger and all loggers derived with Named.
type output struct {
	mu       sync.Mutex
	writer   io.Writer
	colorize bool
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

func NewLoggerService(name string, cfg config.LogConfig) (LoggerService, error) {
	level, err := Parse(cfg.Level)
	if err != nil {
		return nil, err
	}

	out, err := newOutput(cfg)
	if err != nil {
		return nil, err
	}

	return &LoggerServiceImpl{
		cfg:   cfg,
		name:  name,
		level: level,
		out:   out,
	}, nil
}

// NewWriterLogger logs into the given writer only, without colors.
func NewWriterLogger(name string, level LogLevel, writer io.Writer) LoggerService {
	return &LoggerServiceImpl{
		cfg: config.LogConfig{
			TimeFormat: time.RFC3339,
		},
		name:  name,
		level: level,
		out:   &output{writer: writer},
	}
}

// NewDiscardLogger drops every message.
func NewDiscardLogger() LoggerService {
	return NewWriterLogger("", Fatal+1, io.Discard)
}

func newOutput(cfg config.LogConfig) (*output, error) {
	var terminal io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		terminal = os.Stdout
	case "stderr":
		terminal = os.Stderr
	default:
		return nil, fmt.Errorf("invalid log output '%s'", cfg.Output)
	}

	var writers []io.Writer
	if !cfg.NoTerminal {
		writers = append(writers, terminal)
	}

	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.Rotation.MaxSize,
			MaxBackups: cfg.Rotation.MaxBackups,
			MaxAge:     cfg.Rotation.MaxAge,
			Compress:   cfg.Rotation.Compress,
		})
	}

	if len(writers) == 0 {
		writers = append(writers, terminal)
	}

	return &output{
		writer:   io.MultiWriter(writers...),
		colorize: !cfg.NoTerminal && !cfg.NoColor && !cfg.JSON,
	}, nil
}

func (impl *LoggerServiceImpl) format(level LogLevel, timestamp, msg string) []byte {
	if impl.cfg.JSON {
		data, err := json.Marshal(logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Service:   impl.name,
			Message:   msg,
		})
		if err != nil {
			data = []byte(fmt.Sprintf(`{"level":"ERROR","message":%q}`, err.Error()))
		}
		return append(data, '\n')
	}

	prefix := fmt.Sprintf("[%s] %-5s", timestamp, level)
	if impl.name != "" {
		prefix = fmt.Sprintf("%s [%s]", prefix, impl.name)
	}
	if impl.out.colorize {
		return []byte(fmt.Sprintf("%s%s %s\033[0m\n", Color(level), prefix, msg))
	}
	return []byte(fmt.Sprintf("%s %s\n", prefix, msg))
}

func (impl *LoggerServiceImpl) log(level LogLevel, msg string, args ...any) {
	if level < impl.level {
		return
	}

	line := impl.format(level, time.Now().Format(impl.cfg.TimeFormat), fmt.Sprintf(msg, args...))

	impl.out.mu.Lock()
	impl.out.writer.Write(line)
	impl.out.mu.Unlock()

	if level == Fatal {
		os.Exit(1)
	}
}

func (impl *LoggerServiceImpl) Debug(msg string, args ...any) {
	impl.log(Debug, msg, args...)
}

func (impl *LoggerServiceImpl) Info(msg string, args ...any) {
	impl.log(Info, msg, args...)
}

func (impl *LoggerServiceImpl) Warn(msg string, args ...any) {
	impl.log(Warn, msg, args...)
}

func (impl *LoggerServiceImpl) Error(msg string, args ...any) {
	impl.log(Error, msg, args...)
}

func (impl *LoggerServiceImpl) Fatal(msg string, args ...any) {
	impl.log(Fatal, msg, args...)
}

func (impl *LoggerServiceImpl) Named(name string) LoggerService {
	if impl.name != "" {
		name = fmt.Sprintf("%s/%s", impl.name, name)
	}
	return &LoggerServiceImpl{
		cfg:   impl.cfg,
		name:  name,
		level: impl.level,
		out:   impl.out,
	}
}
