package upstash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"winsboard/adapters/kv"
)

// ErrRequestFailed 表示 REST API 回應了非 2xx 狀態或 error 欄位
var ErrRequestFailed = errors.New("upstash: request failed")

type response struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type clientOptions struct {
	httpClient     *http.Client
	compareAndSwap bool
	logger         *slog.Logger
}

type ClientOption func(*clientOptions)

// WithHTTPClient 設定使用的 http.Client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithCompareAndSwap 設定是否以 EVAL 提供 compare-and-swap，預設開啟
func WithCompareAndSwap(enabled bool) ClientOption {
	return func(o *clientOptions) {
		o.compareAndSwap = enabled
	}
}

// WithClientLogger 設定日誌記錄器
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// Client 是 Upstash Redis REST API 的 kv.IBackend 實作。
// 讀取使用 GET，寫入、刪除、設定過期時間使用 POST，皆以 bearer token 驗證。
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
	options clientOptions
}

func NewClient(baseURL, token string, opts ...ClientOption) (*Client, error) {
	const op = "upstash.NewClient"
	if baseURL == "" {
		return nil, fmt.Errorf("%s: base url cannot be empty", op)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%s: invalid base url: %w", op, err)
	}
	if token == "" {
		return nil, fmt.Errorf("%s: token cannot be empty", op)
	}

	options := clientOptions{
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		compareAndSwap: true,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  options.httpClient,
		logger:  options.logger.With(slog.String("caller", "UpstashClient")),
		options: options,
	}, nil
}

// Backend 回傳供 wins 使用的 backend；關閉 compare-and-swap 時不會暴露 kv.ICompareAndSwap
func (c *Client) Backend() kv.IBackend {
	if c.options.compareAndSwap {
		return c
	}
	return struct{ kv.IBackend }{c}
}

// Get 取得 key 的值，key 不存在時返回 kv.ErrNil
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	const op = "upstash.Client.Get"
	result, err := c.do(ctx, http.MethodGet, "/get/"+url.PathEscape(key), nil)
	if err != nil {
		return "", fmt.Errorf("%s: failed to get %s: %w", op, key, err)
	}
	if isNull(result) {
		return "", kv.ErrNil
	}
	var value string
	if err := json.Unmarshal(result, &value); err != nil {
		return "", fmt.Errorf("%s: failed to decode value of %s: %w", op, key, err)
	}
	return value, nil
}

// Set 以 request body 作為值寫入
func (c *Client) Set(ctx context.Context, key, value string) error {
	const op = "upstash.Client.Set"
	if _, err := c.do(ctx, http.MethodPost, "/set/"+url.PathEscape(key), strings.NewReader(value)); err != nil {
		return fmt.Errorf("%s: failed to set %s: %w", op, key, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	const op = "upstash.Client.Delete"
	if _, err := c.do(ctx, http.MethodPost, "/del/"+url.PathEscape(key), nil); err != nil {
		return fmt.Errorf("%s: failed to delete %s: %w", op, key, err)
	}
	return nil
}

// Expire 設定 key 的存活時間，以秒為單位，不足一秒以一秒計
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	const op = "upstash.Client.Expire"
	seconds := max(int64((ttl+time.Second-1)/time.Second), 1)
	path := "/expire/" + url.PathEscape(key) + "/" + strconv.FormatInt(seconds, 10)
	if _, err := c.do(ctx, http.MethodPost, path, nil); err != nil {
		return fmt.Errorf("%s: failed to expire %s: %w", op, key, err)
	}
	return nil
}

// CompareAndSwap 以單一 EVAL 指令執行 kv.CompareAndSwapLua
func (c *Client) CompareAndSwap(ctx context.Context, key string, old *string, value string) (bool, error) {
	const op = "upstash.Client.CompareAndSwap"
	mustExist, expected := kv.CompareAndSwapArgs(old)
	command, err := json.Marshal([]string{"EVAL", kv.CompareAndSwapLua, "1", key, mustExist, expected, value})
	if err != nil {
		return false, fmt.Errorf("%s: failed to encode command: %w", op, err)
	}
	result, err := c.do(ctx, http.MethodPost, "", bytes.NewReader(command))
	if err != nil {
		return false, fmt.Errorf("%s: failed to execute compare-and-swap script on %s: %w", op, key, err)
	}
	var swapped int64
	if err := json.Unmarshal(result, &swapped); err != nil {
		return false, fmt.Errorf("%s: unexpected script result %s: %w", op, string(result), err)
	}
	return swapped == 1, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && resp.StatusCode < 300 {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode >= 300 || decoded.Error != "" {
		c.logger.Debug("Request rejected",
			slog.String("method", method),
			slog.Int("status", resp.StatusCode),
			slog.String("error", decoded.Error))
		return nil, fmt.Errorf("%w: status=%d, error=%s", ErrRequestFailed, resp.StatusCode, decoded.Error)
	}
	return decoded.Result, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
