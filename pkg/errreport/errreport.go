package errreport

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/d60-Lab/fansync/config"
)

var enabled bool

// Init dsn 为空时不上报
func Init(cfg config.SentryConfig) error {
	if cfg.DSN == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
	}); err != nil {
		return err
	}
	enabled = true
	return nil
}

// Capture 上报错误并附带标签
func Capture(err error, tags map[string]string) {
	if !enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

func Flush() {
	if enabled {
		sentry.Flush(2 * time.Second)
	}
}
