// Package cmdutil holds shared helpers for the mint command-line
// binaries.
package cmdutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// LogLevel selects the minimum severity emitted by a logger. It
// implements flag.Value and encoding.TextUnmarshaler, so it can be set
// from a command-line flag or a config file. The zero value means info.
type LogLevel struct {
	name   string
	option level.Option
}

// String implements flag.Value.
func (l LogLevel) String() string {
	if l.name == "" {
		return "info"
	}
	return l.name
}

// Set implements flag.Value.
func (l *LogLevel) Set(in string) error {
	switch strings.ToLower(in) {
	case "error":
		l.option = level.AllowError()
	case "warn":
		l.option = level.AllowWarn()
	case "info":
		l.option = level.AllowInfo()
	case "debug":
		l.option = level.AllowDebug()
	default:
		return fmt.Errorf("unknown log level %q, valid options error, warn, info, debug", in)
	}
	l.name = strings.ToLower(in)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler so the level can be
// read from config files.
func (l *LogLevel) UnmarshalText(text []byte) error {
	return l.Set(string(text))
}

// FilterOption returns l as an option for level.NewFilter.
func (l LogLevel) FilterOption() level.Option {
	if l.option == nil {
		return level.AllowInfo()
	}
	return l.option
}

// NewLogger builds the logfmt stderr logger used by the mint binaries,
// filtered to lvl.
func NewLogger(lvl LogLevel) log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = level.NewFilter(l, lvl.FilterOption())
	return log.With(l, "ts", log.DefaultTimestampUTC)
}
