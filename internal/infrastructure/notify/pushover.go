package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const PushoverEndpoint = "https://api.pushover.net/1/messages.json"

type Pushover struct {
	Token    string
	User     string
	Endpoint string

	hc *http.Client
}

func NewPushover(token, user string) *Pushover {
	return &Pushover{
		Token:    token,
		User:     user,
		Endpoint: PushoverEndpoint,
		hc:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *Pushover) Notify(ctx context.Context, subject, body string) error {
	form := url.Values{}
	form.Set("token", p.Token)
	form.Set("user", p.User)
	form.Set("title", subject)
	form.Set("message", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := p.hc.Do(req)
	if err != nil {
		return fmt.Errorf("pushover: %w", err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	if res.StatusCode >= 400 {
		var r struct {
			Errors []string `json:"errors"`
		}
		_ = json.Unmarshal(b, &r)
		if len(r.Errors) > 0 {
			return fmt.Errorf("pushover failed: %s (status=%d)", strings.Join(r.Errors, "; "), res.StatusCode)
		}
		return fmt.Errorf("pushover failed (status=%d)", res.StatusCode)
	}
	return nil
}
