// Package jwxt scrapes the jwxt academic portal: captcha-gated form login,
// restorable cookie sessions and the score list page.
package jwxt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"scorewatch-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/jwxt")

const (
	rootPath        = "/jsxsd/"
	challengePath   = "/jsxsd/verifycode.servlet"
	loginSubmitPath = "/jsxsd/xk/LoginToXkLdap"
	scoreListPath   = "/jsxsd/kscj/cjcx_list"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.116 Safari/537.36"

// ChallengeSolver guesses the text inside a captcha image. A false return
// means "no guess"; implementations never fail loudly.
type ChallengeSolver interface {
	Solve(ctx context.Context, image []byte) (string, bool)
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	solver   ChallengeSolver
	attempts int
}

type ClientOptions struct {
	BaseUrl string
	Solver  ChallengeSolver
	// bound on the captcha retry loop, defaults to 3
	LoginAttempts int
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	attempts := opts.LoginAttempts
	if attempts <= 0 {
		attempts = 3
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 10)

	telemetry.InstrumentResty(client, "scrapers/jwxt/http")

	return &Client{
		BaseUrl:  baseUrl,
		Http:     client,
		solver:   opts.Solver,
		attempts: attempts,
	}, nil
}

type sessionState struct {
	Cookies map[string]string `json:"cookies"`
	Headers map[string]string `json:"headers"`
}

// Serialize captures the cookie jar and default headers as a single blob.
// Restore(Serialize()) yields a client that sends the same cookies and
// headers on subsequent requests.
func (c *Client) Serialize() (string, error) {
	state := sessionState{
		Cookies: map[string]string{},
		Headers: map[string]string{},
	}
	for _, cookie := range c.Http.GetClient().Jar.Cookies(c.BaseUrl) {
		state.Cookies[cookie.Name] = cookie.Value
	}
	for name := range c.Http.Header {
		state.Headers[name] = c.Http.Header.Get(name)
	}

	buff, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("serialize session: %w", err)
	}
	return string(buff), nil
}

func (c *Client) Restore(blob string) error {
	var state sessionState
	err := json.Unmarshal([]byte(blob), &state)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(state.Cookies))
	for name, value := range state.Cookies {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	c.Http.GetClient().Jar.SetCookies(c.BaseUrl, cookies)

	for name, value := range state.Headers {
		c.Http.SetHeader(name, value)
	}
	return nil
}
