package siak

import (
	"bytes"
	"ceksiak/internal/assert"
	"ceksiak/internal/telemetry"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseUrl  = "https://academic.ui.ac.id"
	DefaultCertFile = "./ui.ac.id.pem"

	loginPath      = "/main/Authentication/Index"
	changeRolePath = "/main/Authentication/ChangeRole"
	historyPath    = "/main/Academic/HistoryByTerm"
)

const (
	report_client_login         = "client.login"
	report_client_fetch_courses = "client.fetch-courses"
	report_client_parse_history = "client.parse-history"
)

var tracer = otel.Tracer("ceksiak/siak")

// errLeftPortal is returned by the transport when the portal redirects to another host,
// usually the central SSO login page once the session has expired.
var errLeftPortal = errors.New("redirected away from the portal")

// ErrLoginFailed is returned when the portal answers the login flow with its login form again.
var ErrLoginFailed = errors.New("siak: login failed, check your username and password")

type ClientOptions struct {
	BaseUrl string
	// path to the PEM encoded certificate that is the only trusted root for the portal
	CertFile string
	// per request timeout, defaults to 30 seconds
	Timeout time.Duration
	// defaults to 1 request per second
	RequestsPerSecond float64
}

// Client is the portal session, it owns the cookie jar that carries authentication
// between requests.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	tel telemetry.API
}

// LoadCertPool reads a PEM file and returns a pool containing only its certificates.
func LoadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trust anchor: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("parse trust anchor %s: no certificate found", path)
	}
	return pool, nil
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel, "telemetry")
	tel = telemetry.NewScopedAPI("siak", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.CertFile == "" {
		opts.CertFile = DefaultCertFile
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	pool, err := LoadCertPool(opts.CertFile)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.SetTLSClientConfig(&tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	})

	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	httpClient.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(10),
		portalRedirectPolicy(baseUrl.Hostname()),
	)
	httpClient.SetTimeout(opts.Timeout)

	// burst of 2 so the two login requests are not delayed
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 2)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)

	return &Client{
		BaseUrl: baseUrl,
		Http:    httpClient,
		tel:     tel,
	}, nil
}

func portalRedirectPolicy(hostname string) resty.RedirectPolicy {
	return resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if !strings.EqualFold(req.URL.Hostname(), hostname) {
			return fmt.Errorf("%w: %s", errLeftPortal, req.URL.Host)
		}
		return nil
	})
}

func statusError(res *resty.Response) error {
	return fmt.Errorf("%s %s: unexpected status %s", res.Request.Method, res.Request.URL, res.Status())
}

// Login submits the credentials and then confirms the role, both requests have to go
// through for the session to be considered logged in.
func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	loginError := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("siak: login: %w", err)
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{
			"u": username,
			"p": password,
		}).
		Post(loginPath)
	if err != nil {
		c.tel.ReportBroken(
			report_client_login,
			fmt.Errorf("submit credentials: %w", err),
		)
		return loginError(err)
	}
	if res.IsError() {
		err = statusError(res)
		c.tel.ReportBroken(report_client_login, err)
		return loginError(err)
	}

	res, err = c.Http.R().
		SetContext(ctx).
		Get(changeRolePath)
	if err != nil {
		c.tel.ReportBroken(
			report_client_login,
			fmt.Errorf("change role: %w", err),
		)
		return loginError(err)
	}
	if res.IsError() {
		err = statusError(res)
		c.tel.ReportBroken(report_client_login, err)
		return loginError(err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(
			report_client_login,
			fmt.Errorf("parse change role page: %w", err),
		)
		return loginError(err)
	}
	// being sent back to the login form means the credentials were rejected
	if doc.Find("input[name=p]").Length() > 0 {
		c.tel.ReportWarning(
			report_client_login,
			"login form returned after change role",
			username,
		)
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		return ErrLoginFailed
	}

	c.tel.ReportDebug("logged in", username)
	return nil
}
