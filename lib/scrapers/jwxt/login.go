package jwxt

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/codes"
)

type LoginStatus int

const (
	LoginSuccess LoginStatus = iota
	// the portal definitively rejected the password; retrying cannot help
	LoginBadCredentials
	// the captcha retry budget ran out without a definitive answer
	LoginChallengeExhausted
)

func (s LoginStatus) String() string {
	switch s {
	case LoginSuccess:
		return "success"
	case LoginBadCredentials:
		return "bad_credentials"
	case LoginChallengeExhausted:
		return "challenge_exhausted"
	}
	return "unknown"
}

// response body markers used by the portal instead of status codes
const (
	markerChallengeRejected = "验证码错误"
	markerLoginPage         = "用户登录"
	markerBadPassword       = "密码错误"
	markerSessionExpired    = "请输入验证码"
)

// EncodeCredentials produces the "encoded" form field the portal expects:
// base64(account) + "%%%" + base64(password).
func EncodeCredentials(account, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(account)) +
		"%%%" +
		base64.StdEncoding.EncodeToString([]byte(password))
}

// Login walks the portal's login flow: a warm-up request for baseline
// cookies, then a bounded captcha loop of fetch-challenge → solve →
// submit. A transport failure on warm-up is terminal and comes back as an
// error; everything else resolves to a LoginStatus. Only a definitive
// password rejection short-circuits the loop.
func (c *Client) Login(ctx context.Context, account, password string) (LoginStatus, error) {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(rootPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "warm up failed")
		return 0, fmt.Errorf("warm up: %w", err)
	}
	if !res.IsSuccess() {
		err := fmt.Errorf("warm up: status %d", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "warm up failed")
		return 0, err
	}

	encoded := EncodeCredentials(account, password)

	for attempt := 1; attempt <= c.attempts; attempt++ {
		answer, ok := c.solveChallenge(ctx)
		if !ok {
			slog.WarnContext(ctx, "challenge unsolved", "attempt", attempt)
			continue
		}

		res, err := c.Http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/x-www-form-urlencoded").
			SetHeader("Origin", c.BaseUrl.Scheme+"://"+c.BaseUrl.Host).
			SetHeader("Referer", c.BaseUrl.Scheme+"://"+c.BaseUrl.Host+"/").
			SetFormData(map[string]string{
				"userAccount":  "",
				"userPassword": "",
				"RANDOMCODE":   answer,
				"encoded":      encoded,
			}).
			Post(loginSubmitPath)
		if err != nil {
			slog.WarnContext(ctx, "login submit failed", "attempt", attempt, "err", err)
			continue
		}
		if !res.IsSuccess() {
			slog.WarnContext(ctx, "login submit rejected", "attempt", attempt, "status", res.StatusCode())
			continue
		}

		body := res.String()
		switch {
		case strings.Contains(body, markerBadPassword):
			span.SetStatus(codes.Error, "bad credentials")
			return LoginBadCredentials, nil
		case strings.Contains(body, markerChallengeRejected):
			slog.WarnContext(ctx, "challenge answer rejected", "attempt", attempt)
			continue
		case strings.Contains(body, markerLoginPage):
			slog.WarnContext(ctx, "still on login page", "attempt", attempt)
			continue
		}
		return LoginSuccess, nil
	}

	span.SetStatus(codes.Error, "challenge retries exhausted")
	return LoginChallengeExhausted, nil
}

// solveChallenge fetches one captcha image and asks the solver for a
// guess. Every failure mode counts the same: no answer this attempt.
func (c *Client) solveChallenge(ctx context.Context) (string, bool) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(challengePath)
	if err != nil {
		slog.WarnContext(ctx, "challenge fetch failed", "err", err)
		return "", false
	}
	if !res.IsSuccess() {
		slog.WarnContext(ctx, "challenge fetch rejected", "status", res.StatusCode())
		return "", false
	}
	if !strings.Contains(res.Header().Get("Content-Type"), "image") {
		slog.WarnContext(ctx, "challenge response is not an image", "content_type", res.Header().Get("Content-Type"))
		return "", false
	}
	image := res.Body()
	if len(image) < 100 {
		slog.WarnContext(ctx, "challenge image suspiciously small", "size", len(image))
		return "", false
	}

	answer, ok := c.solver.Solve(ctx, image)
	if !ok {
		slog.WarnContext(ctx, "solver has no guess")
		return "", false
	}
	return answer, true
}
