package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ficsync/internal/components/assert"
	"ficsync/internal/components/telemetry"
	"ficsync/internal/pagecache"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("ficsync/internal/archive")

const (
	report_client_login          = "client.login"
	report_client_fetch          = "client.fetch"
	report_client_download       = "client.download"
	report_client_cache          = "client.cache"
	report_client_login_redirect = "client.login-redirect"
)

const (
	loginPath     = "/users/login"
	userAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	maxRedirects  = 10
	clientTimeout = 30 * time.Second
)

// PageCache stores page bodies between runs.
type PageCache interface {
	Get(ctx context.Context, namespace string, u *url.URL) ([]byte, error)
	Set(ctx context.Context, namespace string, u *url.URL, body []byte) error
}

type ClientOptions struct {
	BaseUrl string
	// RequestsPerSecond limits the rate requests are sent at, defaults to 1.
	RequestsPerSecond float64
	// Cache is optional.
	Cache PageCache
}

// Client fetches pages from the archive over http, it implements
// PageFetcher and holds the cookie session Login creates.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	cache    PageCache
	username string
	tel      telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.BaseUrl)

	tel = telemetry.NewScopedAPI("archive_client", tel)

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimSuffix(baseUrl.String(), "/"))
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetRedirectPolicy(archiveRedirectPolicy(baseUrl.Hostname()))
	httpClient.SetTimeout(clientTimeout)

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	// burst >= 1 so no request is ever dropped, only delayed
	rateLimiter := rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)

	return &Client{
		BaseUrl: baseUrl,
		Http:    httpClient,
		cache:   opts.Cache,
		tel:     tel,
	}, nil
}

// archiveRedirectPolicy follows redirects within the archive's host and its
// subdomains, downloads are served from one.
func archiveRedirectPolicy(host string) resty.RedirectPolicy {
	return resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		target := req.URL.Hostname()
		if target == host || strings.HasSuffix(target, "."+host) {
			return nil
		}
		return fmt.Errorf("redirect to %s leaves the archive", target)
	})
}

// Login signs into the archive, every request made afterwards carries the
// session cookie.
func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	loginError := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		c.tel.ReportBroken(report_client_login, err)
		return fmt.Errorf("archive: login failed: %w", err)
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(loginPath)
	if err != nil {
		return loginError(fmt.Errorf("login page request: %w: %w", ErrTransport, err))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return loginError(fmt.Errorf("parse login page: %w", err))
	}

	token := doc.Find("input[name=authenticity_token]").AttrOr("value", "")
	if token == "" {
		return loginError(fmt.Errorf("could not find authenticity token"))
	}

	res, err = c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"user[login]":        username,
			"user[password]":     password,
			"authenticity_token": token,
		}).
		Post(loginPath)
	if err != nil {
		return loginError(fmt.Errorf("login request: %w: %w", ErrTransport, err))
	}
	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return loginError(fmt.Errorf("parse login response: %w", err))
	}

	if res.IsError() || isLoginPage(res, doc) {
		flash, _ := doc.Find("div.flash.error").First().Html()
		return loginError(fmt.Errorf("credentials rejected (%s): %s", res.Status(), strings.TrimSpace(flash)))
	}

	c.username = username
	c.tel.ReportDebug("logged in", username)
	return nil
}

// isLoginPage is true when the archive answered with its sign-in form instead
// of the requested page.
func isLoginPage(res *resty.Response, doc *goquery.Document) bool {
	if res.RawResponse != nil && res.RawResponse.Request != nil &&
		strings.HasPrefix(res.RawResponse.Request.URL.Path, loginPath) {
		return true
	}
	return doc.Find("div#signin").Length() > 0
}

// FetchWork fetches the page of a single work, adult content is shown
// without the interstitial.
func (c *Client) FetchWork(ctx context.Context, id string) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "FetchWork")
	defer span.End()
	span.SetAttributes(attribute.String("work_id", id))

	return c.fetch(ctx, "/works/"+url.PathEscape(id), url.Values{"view_adult": {"true"}})
}

// FetchSeries fetches one page of a series listing.
func (c *Client) FetchSeries(ctx context.Context, id string, page int) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "FetchSeries")
	defer span.End()
	span.SetAttributes(
		attribute.String("series_id", id),
		attribute.Int("page", page),
	)

	return c.fetch(ctx, "/series/"+url.PathEscape(id), url.Values{"page": {strconv.Itoa(page)}})
}

func (c *Client) fetch(ctx context.Context, path string, query url.Values) (*goquery.Document, error) {
	full := c.BaseUrl.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	if c.cache != nil {
		body, err := c.cache.Get(ctx, c.username, full)
		if err == nil {
			c.tel.ReportDebug("cache hit", full.String())
			return goquery.NewDocumentFromReader(bytes.NewBuffer(body))
		}
		if !errors.Is(err, pagecache.ErrMiss) {
			c.tel.ReportWarning(report_client_cache, err, full.String())
		}
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(path)
	if err != nil {
		c.tel.ReportBroken(report_client_fetch, err, path)
		return nil, fmt.Errorf("get %s: %w: %w", path, ErrTransport, err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	if res.IsError() {
		err := fmt.Errorf("get %s: %w: %s", path, ErrTransport, res.Status())
		c.tel.ReportBroken(report_client_fetch, err)
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if isLoginPage(res, doc) {
		c.tel.ReportWarning(report_client_login_redirect, path)
		return nil, fmt.Errorf("get %s: %w", path, ErrRestricted)
	}

	if c.cache != nil {
		err = c.cache.Set(ctx, c.username, full, res.Body())
		if err != nil {
			c.tel.ReportWarning(report_client_cache, err, full.String())
		}
	}
	return doc, nil
}

// Download fetches a work file from one of its download links.
func (c *Client) Download(ctx context.Context, link string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Download")
	defer span.End()
	span.SetAttributes(attribute.String("link", link))

	res, err := c.Http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "download request failed")
		c.tel.ReportBroken(report_client_download, err, link)
		return nil, fmt.Errorf("download %s: %w: %w", link, ErrTransport, err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("download %s: %w", link, ErrNotFound)
	}
	if res.IsError() {
		err := fmt.Errorf("download %s: %w: %s", link, ErrTransport, res.Status())
		span.SetStatus(codes.Error, "unexpected status")
		c.tel.ReportBroken(report_client_download, err)
		return nil, err
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil &&
		strings.HasPrefix(res.RawResponse.Request.URL.Path, loginPath) {
		return nil, fmt.Errorf("download %s: %w", link, ErrRestricted)
	}

	span.SetAttributes(attribute.Int("size", len(res.Body())))
	return res.Body(), nil
}
