// Package datasource holds what the execution adapters share: the logger they report
// statements and failures to.
package datasource

// Logger is the subset of logging.Logger used by datasources.
type Logger interface {
	Debug(args ...any)
	Debugf(pattern string, args ...any)
	Info(args ...any)
	Infof(pattern string, args ...any)
	Warn(args ...any)
	Warnf(pattern string, args ...any)
	Error(args ...any)
	Errorf(pattern string, args ...any)
}
