// Package twitter is the platform client: OAuth 1.0a signed v1.1 REST calls,
// the filtered status stream and the Account Activity webhook.
package twitter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"captionbot/internal/domain"
	"captionbot/internal/httpclient"

	"github.com/dghubble/oauth1"
)

const (
	DefaultAPIBase    = "https://api.twitter.com/1.1"
	DefaultUploadBase = "https://upload.twitter.com/1.1"
	DefaultStreamBase = "https://stream.twitter.com/1.1"

	maxErrorBody = 4 << 10
)

// Config holds credentials and endpoints.
type Config struct {
	APIKey            string
	APIKeySecret      string
	AccessToken       string
	AccessTokenSecret string

	APIBase    string
	UploadBase string
	StreamBase string
	Timeout    time.Duration

	// HTTPClient supplies the base transport that requests are signed on top of.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the platform API as the bot account.
type Client struct {
	http           *http.Client
	stream         *http.Client
	apiBase        string
	uploadBase     string
	streamBase     string
	consumerSecret string
	logger         *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.UploadBase == "" {
		cfg.UploadBase = DefaultUploadBase
	}
	if cfg.StreamBase == "" {
		cfg.StreamBase = DefaultStreamBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	oauthCfg := oauth1.NewConfig(cfg.APIKey, cfg.APIKeySecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)

	restBase, streamBase := cfg.HTTPClient, cfg.HTTPClient
	if restBase == nil {
		restBase = httpclient.Shared(cfg.Timeout)
		streamBase = httpclient.Streaming(cfg.Timeout)
	}
	rest := oauthCfg.Client(context.WithValue(context.Background(), oauth1.HTTPClient, restBase), token)
	rest.Timeout = cfg.Timeout
	stream := oauthCfg.Client(context.WithValue(context.Background(), oauth1.HTTPClient, streamBase), token)

	return &Client{
		http:           rest,
		stream:         stream,
		apiBase:        strings.TrimRight(cfg.APIBase, "/"),
		uploadBase:     strings.TrimRight(cfg.UploadBase, "/"),
		streamBase:     strings.TrimRight(cfg.StreamBase, "/"),
		consumerSecret: cfg.APIKeySecret,
		logger:         cfg.Logger,
	}
}

// ConsumerSecret is the app secret used for webhook CRC and signatures.
func (c *Client) ConsumerSecret() string { return c.consumerSecret }

// LookupUser resolves a handle to a user.
func (c *Client) LookupUser(ctx context.Context, handle string) (domain.User, error) {
	handle = strings.TrimPrefix(handle, "@")
	var users []apiUser
	q := url.Values{"screen_name": {handle}}
	if err := c.do(ctx, c.http, http.MethodGet, c.apiBase+"/users/lookup.json?"+q.Encode(), nil, "", &users); err != nil {
		return domain.User{}, fmt.Errorf("lookup user %s: %w", handle, err)
	}
	if len(users) == 0 || users[0].IDStr == "" {
		return domain.User{}, fmt.Errorf("lookup user %s: not found", handle)
	}
	return domain.User{ID: users[0].IDStr, Handle: users[0].ScreenName}, nil
}

// FetchPost returns the extended post with its media attachments.
func (c *Client) FetchPost(ctx context.Context, id string) (domain.Post, error) {
	var t apiTweet
	q := url.Values{"id": {id}, "tweet_mode": {"extended"}}
	if err := c.do(ctx, c.http, http.MethodGet, c.apiBase+"/statuses/show.json?"+q.Encode(), nil, "", &t); err != nil {
		return domain.Post{}, fmt.Errorf("fetch post %s: %w: %w", id, domain.ErrFetch, err)
	}
	return t.toPost(), nil
}

// UploadMedia uploads an image and returns its media id.
func (c *Client) UploadMedia(ctx context.Context, data []byte) (string, error) {
	form := url.Values{"media_data": {base64.StdEncoding.EncodeToString(data)}}
	var resp uploadResponse
	if err := c.postForm(ctx, c.uploadBase+"/media/upload.json", form, &resp); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if resp.MediaIDString == "" {
		return "", fmt.Errorf("upload media: response without media id")
	}
	return resp.MediaIDString, nil
}

// PublishReply posts text with mediaID attached as a reply to replyToID.
func (c *Client) PublishReply(ctx context.Context, text, replyToID, mediaID string) (string, error) {
	form := url.Values{
		"status":                {text},
		"in_reply_to_status_id": {replyToID},
		"media_ids":             {mediaID},
	}
	var t apiTweet
	if err := c.postForm(ctx, c.apiBase+"/statuses/update.json", form, &t); err != nil {
		return "", fmt.Errorf("publish reply: %w", err)
	}
	return t.IDStr, nil
}

// Reshare retweets postID.
func (c *Client) Reshare(ctx context.Context, postID string) error {
	if err := c.postForm(ctx, c.apiBase+"/statuses/retweet/"+url.PathEscape(postID)+".json", url.Values{}, nil); err != nil {
		return fmt.Errorf("reshare %s: %w", postID, err)
	}
	return nil
}

// DeletePost deletes one of the bot's posts.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	if err := c.postForm(ctx, c.apiBase+"/statuses/destroy/"+url.PathEscape(id)+".json", url.Values{}, nil); err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	return nil
}

// SendDirectMessage sends text to recipientID.
func (c *Client) SendDirectMessage(ctx context.Context, recipientID, text string) error {
	var req dmRequest
	req.Event.Type = "message_create"
	req.Event.MessageCreate.Target.RecipientID = recipientID
	req.Event.MessageCreate.MessageData.Text = text

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := c.do(ctx, c.http, http.MethodPost, c.apiBase+"/direct_messages/events/new.json", bytes.NewReader(body), "application/json", nil); err != nil {
		return fmt.Errorf("send direct message: %w", err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	return c.do(ctx, c.http, http.MethodPost, endpoint, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", out)
}

// do sends a signed request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, hc *http.Client, method, endpoint string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.logger.Debug("api call", "method", method, "endpoint", pathOf(endpoint), "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp, pathOf(endpoint))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", pathOf(endpoint), err)
	}
	return nil
}

func readAPIError(resp *http.Response, endpoint string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: string(raw)}
	_ = json.Unmarshal(raw, apiErr)
	return apiErr
}

func pathOf(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil {
		return u.Path
	}
	return endpoint
}
