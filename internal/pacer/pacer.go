package pacer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer 限制外发节奏，每次发送前调用 Wait
type Pacer interface {
	Wait(ctx context.Context) error
}

// Interval 两次发送之间至少间隔 d
type Interval struct {
	limiter *rate.Limiter
}

func NewInterval(d time.Duration) *Interval {
	if d <= 0 {
		return &Interval{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Interval{limiter: rate.NewLimiter(rate.Every(d), 1)}
}

func (p *Interval) Wait(ctx context.Context) error { return p.limiter.Wait(ctx) }

// Noop 不等待，用于测试和一次性任务
type Noop struct{}

func (Noop) Wait(context.Context) error { return nil }
