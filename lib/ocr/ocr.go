// Package ocr talks to an external ddddocr-style sidecar that guesses the
// text inside portal challenge images. The oracle is allowed to be wrong or
// silent; every failure collapses to "no guess".
package ocr

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"scorewatch-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	http     *resty.Client
	endpoint string
}

func NewClient(endpoint string) *Client {
	client := resty.New()
	client.SetTimeout(time.Second * 15)
	telemetry.InstrumentResty(client, "ocr")

	return &Client{
		http:     client,
		endpoint: endpoint,
	}
}

type solveRequest struct {
	Image string `json:"image"`
}

type solveResponse struct {
	Result string `json:"result"`
}

// Solve submits the challenge image and returns the oracle's best guess.
// The second return value is false when there is no usable guess; Solve
// never returns an error.
func (c *Client) Solve(ctx context.Context, image []byte) (string, bool) {
	var out solveResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(solveRequest{Image: base64.StdEncoding.EncodeToString(image)}).
		SetResult(&out).
		Post(c.endpoint)
	if err != nil {
		slog.WarnContext(ctx, "ocr request failed", "err", err)
		return "", false
	}
	if !res.IsSuccess() {
		slog.WarnContext(ctx, "ocr returned non-2xx", "status", res.StatusCode())
		return "", false
	}
	if out.Result == "" {
		return "", false
	}
	return out.Result, true
}
