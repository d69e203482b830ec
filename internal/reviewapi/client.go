// Package reviewapi is the client for the homework review-status API.
package reviewapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hwbot/internal/homework"
	logx "hwbot/pkg/logx"
)

const (
	DefaultBaseURL = "https://praktikum.yandex.ru/api/"
	DefaultTimeout = 10 * time.Second

	statusesPath = "user_api/homework_statuses/"
	maxBodyBytes = 1 << 20
)

type Config struct {
	// BaseURL must end with "/"; one is appended otherwise.
	BaseURL string
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the default client. Its own Timeout is left as is.
	HTTPClient *http.Client
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
	now  func() time.Time
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("review api token is empty")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("review api base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: hc, log: log, now: time.Now}, nil
}

// FetchStatuses requests homework statuses changed since from (unix
// seconds). A nil from means "now".
func (c *Client) FetchStatuses(ctx context.Context, from *int64) (*homework.PollResult, error) {
	ts := c.now().Unix()
	if from != nil {
		ts = *from
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := c.cfg.BaseURL + statusesPath + "?" + url.Values{"from_date": {strconv.FormatInt(ts, 10)}}.Encode()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, c.fail(&FetchError{Kind: KindRequest, Err: err}, ts)
	}
	req.Header.Set("Authorization", "OAuth "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(&FetchError{Kind: classify(ctx, err), Err: err}, ts)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.fail(&FetchError{Kind: classify(ctx, err), Err: fmt.Errorf("read body: %w", err)}, ts)
	}

	if resp.StatusCode/100 != 2 {
		return nil, c.fail(&FetchError{
			Kind:       KindHTTP,
			StatusCode: resp.StatusCode,
			Err:        errors.New(snippet(body, 512)),
		}, ts)
	}

	var out homework.PollResult
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, c.fail(&FetchError{Kind: KindDecode, Err: err}, ts)
	}

	c.log.Debug("statuses fetched",
		logx.Int64("from_date", ts),
		logx.Int("homeworks", len(out.Homeworks)),
		logx.Int64Ptr("current_date", out.CurrentDate),
		logx.Duration("took", time.Since(start)),
	)
	return &out, nil
}

func (c *Client) fail(err *FetchError, from int64) error {
	fields := []logx.Field{logx.String("kind", string(err.Kind)), logx.Int64("from_date", from), logx.Err(err.Err)}
	if err.StatusCode != 0 {
		fields = append(fields, logx.Int("status", err.StatusCode))
	}
	c.log.Warn("statuses fetch failed", fields...)
	return err
}

// classify maps transport errors onto the fetch taxonomy. parent is the
// caller's context: its cancellation is not a timeout.
func classify(parent context.Context, err error) FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindConnection
}

func snippet(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "empty body"
	}
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
