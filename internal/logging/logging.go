// Package logging builds the zap logger shared by the gloop binaries.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

// New returns a development or production logger. When file is set, output
// goes there instead of stderr so terminal UIs are not disturbed.
func New(mode, level, file string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}

	if file != "" {
		cfg.OutputPaths = []string{file}
		cfg.ErrorOutputPaths = []string{file}
	}

	return cfg.Build()
}
