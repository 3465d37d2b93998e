package notify

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"
)

// HTTPPublisher posts events as JSON to a webhook URL.
type HTTPPublisher struct {
	url    string
	client *resty.Client
}

func NewHTTPPublisher(url, apiKey string, timeout time.Duration) *HTTPPublisher {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("x-api-key", apiKey)
	}
	return &HTTPPublisher{url: url, client: client}
}

func (p *HTTPPublisher) Publish(ctx context.Context, event Event) error {
	res, err := p.client.R().
		SetContext(ctx).
		SetBody(event).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("post event to %s: %w", p.url, err)
	}
	if res.IsError() {
		return fmt.Errorf("post event to %s: status %d: %s", p.url, res.StatusCode(), res.String())
	}
	return nil
}

func (p *HTTPPublisher) Close() error {
	return p.client.Close()
}
