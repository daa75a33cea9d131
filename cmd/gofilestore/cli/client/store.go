package client

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mwantia/gofilestore/internal/agent"
	"github.com/mwantia/gofilestore/internal/config"
	"github.com/mwantia/gofilestore/pkg/filestore"
	"github.com/mwantia/gofilestore/pkg/log"
	"github.com/mwantia/gofilestore/pkg/query"
)

// connectStore opens the configured store. Logs go to stderr so that
// command output stays parsable.
func connectStore(ctx context.Context, withContents bool) (*filestore.FileStore, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if !withContents {
		cfg.ContentSizeLimit = 0
	}

	cfg.Log.Output = "stderr"
	logger, err := log.NewLoggerService("gofilestore", cfg.Log)
	if err != nil {
		return nil, err
	}

	fs, err := agent.NewFileStore(cfg, logger.Named("filestore"))
	if err != nil {
		return nil, err
	}
	if err := fs.Connect(ctx); err != nil {
		return nil, err
	}
	return fs, nil
}

func parseFilter(args []string) (query.Filter, error) {
	filter := query.Filter{}
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return filter, nil
	}
	if err := json.Unmarshal([]byte(args[0]), &filter); err != nil {
		return nil, fmt.Errorf("invalid filter '%s': %w", args[0], err)
	}
	return filter, nil
}

// parseAssignments reads key=value pairs. Values that are valid JSON keep
// their type, anything else is a string.
func parseAssignments(args []string) (query.Document, error) {
	fields := query.Document{}
	for _, arg := range args {
		key, raw, found := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid assignment '%s', expected key=value", arg)
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		fields[key] = value
	}
	return fields, nil
}

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// dateFromName stores the first YYYY-MM-DD found in the file name as "date".
func dateFromName(record query.Document) (query.Document, error) {
	name, _ := record[filestore.FieldName].(string)
	if date := datePattern.FindString(name); date != "" {
		return query.Document{"date": date}, nil
	}
	return nil, nil
}
