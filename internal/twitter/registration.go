package twitter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

func (c *Client) webhooksURL(env string) string {
	return c.apiBase + "/account_activity/all/" + url.PathEscape(env) + "/webhooks"
}

// ListWebhooks returns the webhooks registered for env.
func (c *Client) ListWebhooks(ctx context.Context, env string) ([]Webhook, error) {
	var hooks []Webhook
	if err := c.do(ctx, c.http, http.MethodGet, c.webhooksURL(env)+".json", nil, "", &hooks); err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return hooks, nil
}

// DeleteWebhook removes one webhook.
func (c *Client) DeleteWebhook(ctx context.Context, env, id string) error {
	if err := c.do(ctx, c.http, http.MethodDelete, c.webhooksURL(env)+"/"+url.PathEscape(id)+".json", nil, "", nil); err != nil {
		return fmt.Errorf("delete webhook %s: %w", id, err)
	}
	return nil
}

// RegisterWebhook registers callbackURL. The platform sends a CRC challenge
// to it before answering, so the receiver must already be serving.
func (c *Client) RegisterWebhook(ctx context.Context, env, callbackURL string) (Webhook, error) {
	var hook Webhook
	q := url.Values{"url": {callbackURL}}
	if err := c.do(ctx, c.http, http.MethodPost, c.webhooksURL(env)+".json?"+q.Encode(), nil, "", &hook); err != nil {
		return Webhook{}, fmt.Errorf("register webhook: %w", err)
	}
	return hook, nil
}

// Subscribe subscribes the bot account to activity on env.
func (c *Client) Subscribe(ctx context.Context, env string) error {
	endpoint := c.apiBase + "/account_activity/all/" + url.PathEscape(env) + "/subscriptions.json"
	if err := c.do(ctx, c.http, http.MethodPost, endpoint, nil, "", nil); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// SetupWebhook replaces any existing webhooks for env with callbackURL and
// subscribes the bot account.
func (c *Client) SetupWebhook(ctx context.Context, env, callbackURL string) (Webhook, error) {
	hooks, err := c.ListWebhooks(ctx, env)
	if err != nil {
		return Webhook{}, err
	}
	for _, h := range hooks {
		if err := c.DeleteWebhook(ctx, env, h.ID); err != nil {
			return Webhook{}, err
		}
		c.logger.Info("removed webhook", "id", h.ID, "url", h.URL)
	}

	hook, err := c.RegisterWebhook(ctx, env, callbackURL)
	if err != nil {
		return Webhook{}, err
	}
	c.logger.Info("registered webhook", "id", hook.ID, "url", hook.URL)

	if err := c.Subscribe(ctx, env); err != nil {
		return hook, err
	}
	c.logger.Info("subscribed to account activity", "env", env)
	return hook, nil
}
