// Package dingtalk delivers messages to DingTalk group robots via their
// signed webhook protocol.
package dingtalk

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"scorewatch-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

// Webhook identifies one robot: the access-token URL plus its signing secret.
type Webhook struct {
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

type Client struct {
	http *resty.Client

	// now is swappable so tests can pin the signature timestamp
	now func() time.Time
}

func NewClient() *Client {
	client := resty.New()
	client.SetTimeout(time.Second * 10)
	telemetry.InstrumentResty(client, "dingtalk")

	return &Client{
		http: client,
		now:  time.Now,
	}
}

// Sign computes the webhook signature for a millisecond timestamp:
// base64 of HMAC-SHA256(secret, "<timestamp>\n<secret>"), URL-escaped.
func Sign(timestampMs int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestampMs, secret)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

func (c *Client) signedURL(hook Webhook) string {
	ts := c.now().UnixMilli()
	return fmt.Sprintf(
		"%s&timestamp=%s&sign=%s",
		hook.URL,
		strconv.FormatInt(ts, 10),
		Sign(ts, hook.Secret),
	)
}

type textPayload struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

type markdownPayload struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"markdown"`
}

type robotResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (c *Client) SendText(ctx context.Context, hook Webhook, content string) error {
	payload := textPayload{MsgType: "text"}
	payload.Text.Content = content
	return c.post(ctx, hook, payload)
}

func (c *Client) SendMarkdown(ctx context.Context, hook Webhook, title, text string) error {
	payload := markdownPayload{MsgType: "markdown"}
	payload.Markdown.Title = title
	payload.Markdown.Text = text
	return c.post(ctx, hook, payload)
}

func (c *Client) post(ctx context.Context, hook Webhook, payload any) error {
	if hook.URL == "" || hook.Secret == "" {
		return fmt.Errorf("webhook is not configured")
	}

	var out robotResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&out).
		Post(c.signedURL(hook))
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return fmt.Errorf("webhook returned status %d", res.StatusCode())
	}
	if out.ErrCode != 0 {
		return fmt.Errorf("robot rejected message: %d %s", out.ErrCode, out.ErrMsg)
	}
	return nil
}
