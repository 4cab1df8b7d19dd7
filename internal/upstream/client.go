package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/fansync/config"
	"github.com/d60-Lab/fansync/pkg/logger"
)

const maxResponseSize = 10 * 1024 * 1024

// ErrUnavailable 上游不可用：网络错误、5xx、429 或熔断打开
var ErrUnavailable = errors.New("upstream unavailable")

// Error 上游返回的非 2xx 响应
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *Error) Is(target error) bool {
	return target == ErrUnavailable && (e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests)
}

// Client 上游平台 API 客户端，所有请求经过限速与熔断
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(cfg config.UpstreamConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "upstream-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		cb:      cb,
	}
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		payload = b
	}

	respBody, err := c.cb.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", ErrUnavailable, method, path, err)
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("response too large: %s %s", method, path)
	}

	logger.Debug("upstream request",
		zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &Error{Method: method, Path: path, StatusCode: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

// Accounts 已连接账号列表
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var env envelope[[]Account]
	if err := c.Get(ctx, "/api/accounts", &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ActiveFans 单页活跃订阅者
func (c *Client) ActiveFans(ctx context.Context, accountID string, limit, offset int) ([]Fan, error) {
	return c.fans(ctx, accountID, "active", limit, offset)
}

// ExpiredFans 单页过期订阅者
func (c *Client) ExpiredFans(ctx context.Context, accountID string, limit, offset int) ([]Fan, error) {
	return c.fans(ctx, accountID, "expired", limit, offset)
}

func (c *Client) fans(ctx context.Context, accountID, kind string, limit, offset int) ([]Fan, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var env envelope[[]Fan]
	if err := c.Get(ctx, fmt.Sprintf("/api/%s/fans/%s?%s", url.PathEscape(accountID), kind, q.Encode()), &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// Chats 账号下全部会话
func (c *Client) Chats(ctx context.Context, accountID string) ([]Chat, error) {
	var env envelope[[]Chat]
	if err := c.Get(ctx, fmt.Sprintf("/api/%s/chats", url.PathEscape(accountID)), &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ChatMessages 单页会话消息
func (c *Client) ChatMessages(ctx context.Context, accountID string, fanID int64, mq MessageQuery) ([]Message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(mq.Limit))
	if mq.Offset > 0 {
		q.Set("offset", strconv.Itoa(mq.Offset))
	}
	if mq.Order != "" {
		q.Set("order", string(mq.Order))
	}
	var env envelope[[]Message]
	path := fmt.Sprintf("/api/%s/chats/%d/messages?%s", url.PathEscape(accountID), fanID, q.Encode())
	if err := c.Get(ctx, path, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// Transactions 最近 limit 条账号流水
func (c *Client) Transactions(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	var env envelope[[]Transaction]
	path := fmt.Sprintf("/api/%s/payouts/transactions?limit=%d", url.PathEscape(accountID), limit)
	if err := c.Get(ctx, path, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// User 单个 fan 的当前记录
func (c *Client) User(ctx context.Context, fanID int64) (*Fan, error) {
	var env envelope[Fan]
	if err := c.Get(ctx, fmt.Sprintf("/api/users/%d", fanID), &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// SendMessage 向 fan 发送消息，返回上游创建的消息（可能不带 id）
func (c *Client) SendMessage(ctx context.Context, accountID string, fanID int64, text string) (*Message, error) {
	var env envelope[Message]
	path := fmt.Sprintf("/api/%s/chats/%d/messages", url.PathEscape(accountID), fanID)
	if err := c.Post(ctx, path, sendMessageRequest{Text: text}, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}
