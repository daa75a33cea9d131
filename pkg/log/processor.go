package log

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/mwantia/fabric/pkg/container"
)

var loggerServiceType = reflect.TypeOf((*LoggerService)(nil)).Elem()

// Resolve looks up the registered LoggerService and scopes it to name.
// An empty name returns the base logger.
func Resolve(ctx context.Context, sc *container.ServiceContainer, name string) (LoggerService, error) {
	ok, resolved := sc.ResolveByType(ctx, loggerServiceType)
	if !ok {
		return nil, fmt.Errorf("no logger service registered")
	}

	base, ok := resolved.(LoggerService)
	if !ok {
		return nil, fmt.Errorf("resolved service of type %T is not a LoggerService", resolved)
	}

	if name = strings.TrimSpace(name); name != "" {
		return base.Named(name), nil
	}
	return base, nil
}

// LoggerTagProcessor injects loggers into fields tagged with `fabric:"logger"`
// or `fabric:"logger:<name>"`.
type LoggerTagProcessor struct{}

func NewLoggerTagProcessor() *LoggerTagProcessor {
	return &LoggerTagProcessor{}
}

// GetPriority runs the processor ahead of the default inject processor.
func (ltp *LoggerTagProcessor) GetPriority() int {
	return 50
}

func (ltp *LoggerTagProcessor) CanProcess(value string) bool {
	return strings.EqualFold(value, "logger") || strings.HasPrefix(strings.ToLower(value), "logger:")
}

func (ltp *LoggerTagProcessor) Process(ctx context.Context, sc *container.ServiceContainer, field reflect.StructField, value string) (any, error) {
	_, name, _ := strings.Cut(value, ":")

	logger, err := Resolve(ctx, sc, name)
	if err != nil {
		return nil, fmt.Errorf("failed to inject logger into field '%s': %w", field.Name, err)
	}
	return logger, nil
}
