package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/yeisme/arca/pkg/configs"
)

// Guarded 为远端调用加上单次超时、速率限制与熔断.
// 超时只让当前调用失败，是否中止整个流程由调用方决定.
type Guarded struct {
	src     Source
	timeout time.Duration
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
}

// GuardOptions 保护选项.
type GuardOptions struct {
	Timeout        time.Duration
	RateLimit      configs.RateLimitConfig
	CircuitBreaker configs.CircuitBreakerConfig
}

// NewGuarded 包装远端来源.
func NewGuarded(src Source, opts GuardOptions) *Guarded {
	g := &Guarded{src: src, timeout: opts.Timeout}

	if rl := opts.RateLimit; rl.Enabled && rl.RPS > 0 {
		burst := max(rl.Burst, 1)
		g.limiter = rate.NewLimiter(rate.Limit(rl.RPS), burst)
	}

	if cbCfg := opts.CircuitBreaker; cbCfg.Enabled {
		g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "remote-source",
			MaxRequests: cbCfg.MaxRequestsInHalf,
			Interval:    time.Duration(cbCfg.IntervalSeconds) * time.Second,
			Timeout:     time.Duration(cbCfg.TimeoutSeconds) * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cbCfg.MinRequests {
					return false
				}

				failureRate := float64(counts.TotalFailures) / float64(counts.Requests)

				return failureRate >= cbCfg.FailureRate
			},
			// 调用方主动取消不计为远端故障
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		})
	}

	return g
}

// ListPage 实现 Source.
func (g *Guarded) ListPage(ctx context.Context, folder, pageToken string) (Page, error) {
	var page Page

	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		page, err = g.src.ListPage(ctx, folder, pageToken)

		return err
	})

	return page, err
}

// Open 实现 Source. 超时只约束到拿到流为止，读取流不受限.
func (g *Guarded) Open(ctx context.Context, id string) (*Stream, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	call := func() (*Stream, error) { return g.open(ctx, id) }

	if g.cb == nil {
		return call()
	}

	res, err := g.cb.Execute(func() (any, error) { return call() })
	if err != nil {
		return nil, breakerErr(err)
	}

	return res.(*Stream), nil
}

// open 在超时内拿到流. 计时器在 src.Open 返回后停止，之后的读取只受 ctx 约束；
// 关闭流时释放派生的 ctx.
func (g *Guarded) open(ctx context.Context, id string) (*Stream, error) {
	if g.timeout <= 0 {
		return g.src.Open(ctx, id)
	}

	callCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(g.timeout, cancel)

	s, err := g.src.Open(callCtx, id)

	if !timer.Stop() {
		if err == nil {
			_ = s.Close()
		}

		cancel()

		return nil, fmt.Errorf("open %s: %w", id, context.DeadlineExceeded)
	}

	if err != nil {
		cancel()
		return nil, err
	}

	out := *s
	out.ReadCloser = &cancelOnClose{ReadCloser: s.ReadCloser, cancel: cancel}

	return &out, nil
}

// cancelOnClose 关闭时取消打开流所用的 ctx.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

func (g *Guarded) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.wait(ctx); err != nil {
		return err
	}

	run := func() error {
		callCtx := ctx

		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)

			defer cancel()
		}

		return fn(callCtx)
	}

	if g.cb == nil {
		return run()
	}

	_, err := g.cb.Execute(func() (any, error) { return nil, run() })

	return breakerErr(err)
}

func (g *Guarded) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	return nil
}

func breakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("remote source unavailable: %w", err)
	}

	return err
}
