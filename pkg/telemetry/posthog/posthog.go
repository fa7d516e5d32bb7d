// Package posthog sends product analytics events. Without an API key the client is disabled and
// every call is a no-op.
package posthog

import (
	"context"

	posthoggo "github.com/posthog/posthog-go"
	"github.com/rotisserie/eris"
)

type Options struct {
	APIKey string
	// Endpoint overrides the PostHog host. Empty uses the library default.
	Endpoint string
	// DistinctID identifies this installation in every event.
	DistinctID string
	// BaseProperties are merged into every event. Event properties win on key clashes.
	BaseProperties map[string]any
}

// enqueuer is the part of the posthog client used here.
type enqueuer interface {
	Enqueue(msg posthoggo.Message) error
	Close() error
}

// Client is safe for concurrent use. A nil or disabled Client drops every event.
type Client struct {
	client     enqueuer
	distinctID string
	base       map[string]any
}

// New returns a client for opt. It is disabled when opt.APIKey is empty.
func New(opt Options) (*Client, error) {
	if opt.APIKey == "" {
		return &Client{}, nil
	}
	client, err := posthoggo.NewWithConfig(opt.APIKey, posthoggo.Config{Endpoint: opt.Endpoint})
	if err != nil {
		return nil, eris.Wrap(err, "failed to initialize posthog")
	}
	return newClient(client, opt), nil
}

func newClient(client enqueuer, opt Options) *Client {
	distinctID := opt.DistinctID
	if distinctID == "" {
		distinctID = "anonymous"
	}
	return &Client{client: client, distinctID: distinctID, base: opt.BaseProperties}
}

// Enabled reports whether events are sent.
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// CaptureEvent queues event with the base properties and props. Delivery is asynchronous and
// best effort.
func (c *Client) CaptureEvent(_ context.Context, event string, props map[string]any) error {
	if !c.Enabled() {
		return nil
	}
	properties := posthoggo.NewProperties()
	for k, v := range c.base {
		properties.Set(k, v)
	}
	for k, v := range props {
		properties.Set(k, v)
	}
	err := c.client.Enqueue(posthoggo.Capture{
		DistinctId: c.distinctID,
		Event:      event,
		Properties: properties,
	})
	return eris.Wrapf(err, "failed to enqueue event %s", event)
}

// Close flushes queued events.
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return eris.Wrap(c.client.Close(), "failed to close posthog client")
}
