package authstate

import (
	"sync"

	"github.com/goliatone/go-logger/glog"
)

var (
	baseLoggerOnce sync.Once
	baseLogger     *glog.BaseLogger
)

func defaultLoggerProvider() LoggerProvider {
	baseLoggerOnce.Do(func() {
		baseLogger = glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithName("authstate"),
			glog.WithAddSource(false),
		)
	})
	return baseLoggerProviderAdapter{base: baseLogger}
}

type baseLoggerProviderAdapter struct {
	base *glog.BaseLogger
}

func (a baseLoggerProviderAdapter) GetLogger(name string) Logger {
	return a.base.GetLogger(name)
}

// ProviderFromBaseLogger exposes a glog base logger as a LoggerProvider
func ProviderFromBaseLogger(base *glog.BaseLogger) LoggerProvider {
	if base == nil {
		return defaultLoggerProvider()
	}
	return baseLoggerProviderAdapter{base: base}
}

type fixedLoggerProvider struct {
	logger Logger
}

func (p fixedLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

// ResolveLogger picks the logger for name. An explicit logger wins when the
// provider cannot supply one; with neither we fall back to the package default.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if resolved := provider.GetLogger(name); resolved != nil {
			return provider, resolved
		}
		if logger != nil {
			return fixedLoggerProvider{logger: logger}, logger
		}
	}

	if logger != nil {
		return fixedLoggerProvider{logger: logger}, logger
	}

	provider = defaultLoggerProvider()
	return provider, provider.GetLogger(name)
}
