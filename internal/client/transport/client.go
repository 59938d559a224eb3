package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/client/payload"
	"github.com/dmitrijs2005/nextshape/internal/common"
	"github.com/dmitrijs2005/nextshape/internal/logging"
)

// Options configures an HTTPClient.
type Options struct {
	BaseURL string
	// Timeout is the per-request ceiling.
	Timeout time.Duration
	// AuthMode is models.AuthModeCookie or models.AuthModeBearer.
	AuthMode string
	Logger   logging.Logger
	// Registerer receives the client metrics. A private registry is used when nil.
	Registerer prometheus.Registerer
}

// HTTPClient implements API over resty.
type HTTPClient struct {
	rc      *resty.Client
	mode    string
	log     logging.Logger
	metrics *metrics

	hooksMu sync.RWMutex
	hooks   SessionHooks

	group singleflight.Group

	mu sync.Mutex
	// gen counts finished refresh attempts. A 401 on a request sent under an
	// older generation reuses that attempt's verdict instead of refreshing again.
	gen           uint64
	lastRefreshOK bool
}

var _ API = (*HTTPClient)(nil)

func NewHTTPClient(opts Options) (*HTTPClient, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.AuthMode == "" {
		opts.AuthMode = models.AuthModeCookie
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, err
	}

	c := &HTTPClient{
		mode:    opts.AuthMode,
		log:     opts.Logger.With("component", "transport"),
		metrics: m,
		hooks:   noHooks{},
	}

	c.rc = resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetCookieJar(jar).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{log: c.log})

	c.rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if r.Body != nil {
			r.Body = payload.Normalize(r.Body)
		}
		return nil
	})

	return c, nil
}

// SetHooks installs the session owner. Call it before the first request.
func (c *HTTPClient) SetHooks(h SessionHooks) {
	if h == nil {
		h = noHooks{}
	}
	c.hooksMu.Lock()
	c.hooks = h
	c.hooksMu.Unlock()
}

func (c *HTTPClient) sessionHooks() SessionHooks {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	return c.hooks
}

type call struct {
	method string
	path   string
	body   any
	// noRefresh disables refresh-and-replay: login and refresh-access
	// answer 401 for reasons a refresh cannot fix.
	noRefresh bool
}

func (c *HTTPClient) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// send builds a fresh request for cl and executes it once. Only network-level
// failures are returned as errors; HTTP statuses are left to the caller.
func (c *HTTPClient) send(ctx context.Context, cl call) (*resty.Response, error) {
	reqID := uuid.NewString()

	r := c.rc.R().
		SetContext(ctx).
		SetHeader(common.RequestIDHeaderName, reqID)

	if c.mode == models.AuthModeBearer {
		if cred := c.sessionHooks().Credential(); cred != nil && cred.AccessToken != "" {
			r.SetAuthToken(cred.AccessToken)
		}
	}
	if cl.body != nil {
		r.SetBody(cl.body)
	}

	resp, err := r.Execute(cl.method, cl.path)
	if err != nil {
		c.metrics.request(cl.method, "error")
		c.log.Warn(ctx, "request failed", "method", cl.method, "path", cl.path, "request_id", reqID, "error", err)
		return nil, networkError(err)
	}

	c.metrics.request(cl.method, strconv.Itoa(resp.StatusCode()))
	c.log.Debug(ctx, "request done",
		"method", cl.method, "path", cl.path, "request_id", reqID,
		"status", resp.StatusCode(), "elapsed", resp.Time())
	return resp, nil
}

// execute sends cl and, on 401, refreshes the session once and replays the
// rebuilt request once.
func (c *HTTPClient) execute(ctx context.Context, cl call) (*resty.Response, error) {
	gen := c.generation()

	resp, err := c.send(ctx, cl)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusUnauthorized || cl.noRefresh {
		return resp, nil
	}

	if !c.refresh(ctx, gen) {
		return nil, expiredError()
	}

	replayGen := c.generation()
	resp, err = c.send(ctx, cl)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		c.expire(ctx, replayGen)
		return nil, expiredError()
	}
	return resp, nil
}

// refresh runs at most one refresh-access call per generation. Concurrent
// callers share the in-flight attempt; the expired hook runs only in the
// attempt that failed.
func (c *HTTPClient) refresh(ctx context.Context, gen uint64) bool {
	v, _, _ := c.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		c.mu.Lock()
		if c.gen != gen {
			ok := c.lastRefreshOK
			c.mu.Unlock()
			return ok, nil
		}
		c.mu.Unlock()

		hctx := context.WithoutCancel(ctx)
		ok := c.renew(hctx)

		c.mu.Lock()
		first := c.gen == gen
		if first {
			c.gen++
			c.lastRefreshOK = ok
		} else {
			ok = c.lastRefreshOK
		}
		c.mu.Unlock()

		if first && !ok {
			c.sessionHooks().SessionExpired(hctx)
		}
		return ok, nil
	})
	return v.(bool)
}

// expire handles a replay that was still rejected after a successful refresh.
func (c *HTTPClient) expire(ctx context.Context, gen uint64) {
	c.mu.Lock()
	first := c.gen == gen
	if first {
		c.gen++
		c.lastRefreshOK = false
	}
	c.mu.Unlock()

	if first {
		c.log.Warn(ctx, "request rejected after session refresh")
		c.sessionHooks().SessionExpired(context.WithoutCancel(ctx))
	}
}

func (c *HTTPClient) renew(ctx context.Context) bool {
	resp, err := c.send(ctx, call{method: http.MethodPost, path: PathRefreshAccess, noRefresh: true})
	if err != nil {
		c.metrics.refresh("error")
		c.log.Warn(ctx, "session refresh failed", "error", err)
		return false
	}
	if !resp.IsSuccess() {
		c.metrics.refresh("rejected")
		c.log.Info(ctx, "session refresh rejected", "status", resp.StatusCode())
		return false
	}

	if access := accessToken(resp.Body()); access != "" {
		c.sessionHooks().SessionRenewed(ctx, access)
	}
	c.metrics.refresh("success")
	c.log.Info(ctx, "session refreshed")
	return true
}

// do executes cl and decodes the (possibly enveloped) payload into out.
func (c *HTTPClient) do(ctx context.Context, cl call, out any) error {
	resp, err := c.execute(ctx, cl)
	if err != nil {
		return err
	}
	if err := statusError(resp.StatusCode(), resp.Body()); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return unwrap(resp.Body(), out)
}

// raw is do without envelope detection.
func (c *HTTPClient) raw(ctx context.Context, cl call, out any) error {
	resp, err := c.execute(ctx, cl)
	if err != nil {
		return err
	}
	if err := statusError(resp.StatusCode(), resp.Body()); err != nil {
		return err
	}
	return decodeJSON(resp.Body(), out)
}

func (c *HTTPClient) envelope(ctx context.Context, cl call) (envelope, error) {
	var env envelope
	err := c.raw(ctx, cl, &env)
	return env, err
}

func (c *HTTPClient) outcome(ctx context.Context, cl call) (models.Outcome, error) {
	env, err := c.envelope(ctx, cl)
	if err != nil {
		return models.Outcome{}, err
	}
	return env.outcome(), nil
}

type noHooks struct{}

func (noHooks) Credential() *models.Credential { return nil }

func (noHooks) SessionRenewed(context.Context, string) {}

func (noHooks) SessionExpired(context.Context) {}

// restyLogger routes resty's own diagnostics into the client logger.
type restyLogger struct {
	log logging.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.log.Error(context.Background(), fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.log.Warn(context.Background(), fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, v...))
}
