// Package notifier posts realtime deal alerts and daily digests to a
// user's push channel (an ntfy-style topic URL).
package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// PushClient posts plain-text notifications to a topic URL. Failures
// are returned to the caller, which is expected to log and swallow
// them per the spec's push-failure policy; a push failure must never
// abort an orchestration.
type PushClient struct {
	host       string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewPushClient builds a client posting against https://host/<topic>,
// capped at rps pushes per second to absorb a burst of profiles
// finishing their orchestration at the same moment.
func NewPushClient(host string, rps float64, burst int) *PushClient {
	return &PushClient{
		host:       strings.TrimSuffix(host, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Send issues one push to topic. A non-2xx response is returned as an
// error; it is the caller's responsibility to log and continue.
func (c *PushClient) Send(ctx context.Context, topic, title, click, tags, priority, body string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notifier: rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.host, topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("notifier: build request: %w", err)
	}
	req.Header.Set("Title", title)
	if click != "" {
		req.Header.Set("Click", click)
	}
	if tags != "" {
		req.Header.Set("Tags", tags)
	}
	if priority != "" {
		req.Header.Set("Priority", priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notifier: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notifier: push host returned %d", resp.StatusCode)
	}
	return nil
}
