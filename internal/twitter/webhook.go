package twitter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"captionbot/internal/domain"
)

const (
	signatureHeader = "X-Twitter-Webhooks-Signature"
	maxWebhookBody  = 1 << 20
)

// WebhookConfig configures the Account Activity receiver.
type WebhookConfig struct {
	Addr           string // listen address, e.g. 0.0.0.0:8443
	Path           string // default /webhook/twitter
	ConsumerSecret string // signs CRC responses and verifies deliveries
	BotID          string // the bot's own posts are not forwarded
	Bus            domain.EventBus
	Logger         *slog.Logger
}

// WebhookServer answers CRC challenges and turns deliveries into events.
type WebhookServer struct {
	addr   string
	path   string
	secret string
	botID  string
	bus    domain.EventBus
	logger *slog.Logger
	mux    *http.ServeMux
	server *http.Server
}

func NewWebhookServer(cfg WebhookConfig) *WebhookServer {
	if cfg.Path == "" {
		cfg.Path = "/webhook/twitter"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8443"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	w := &WebhookServer{
		addr:   cfg.Addr,
		path:   cfg.Path,
		secret: cfg.ConsumerSecret,
		botID:  cfg.BotID,
		bus:    cfg.Bus,
		logger: cfg.Logger,
		mux:    http.NewServeMux(),
	}
	w.mux.HandleFunc(w.path, w.handleWebhook)
	return w
}

// Handle mounts an extra handler (metrics, status) on the same server.
func (w *WebhookServer) Handle(pattern string, h http.Handler) {
	w.mux.Handle(pattern, h)
}

// Handler returns the server's routes.
func (w *WebhookServer) Handler() http.Handler { return w.mux }

// Start serves until ctx is cancelled.
func (w *WebhookServer) Start(ctx context.Context) error {
	w.server = &http.Server{
		Addr:              w.addr,
		Handler:           w.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	w.logger.Info("webhook server starting", "addr", w.addr, "path", w.path)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (w *WebhookServer) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.handleCRC(rw, r)
	case http.MethodPost:
		w.handleDelivery(rw, r)
	default:
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (w *WebhookServer) handleCRC(rw http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("crc_token")
	if token == "" {
		http.Error(rw, "crc_token is required", http.StatusBadRequest)
		return
	}
	w.logger.Debug("answering CRC challenge")
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]string{
		"response_token": CRCResponse(w.secret, token),
	})
}

func (w *WebhookServer) handleDelivery(rw http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get(signatureHeader)
	if sig == "" {
		http.Error(rw, "Missing signature", http.StatusUnauthorized)
		return
	}
	if !verifySignature(body, w.secret, sig) {
		w.logger.Warn("rejected webhook delivery with invalid signature")
		http.Error(rw, "Invalid signature", http.StatusForbidden)
		return
	}

	var payload activityPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}
	w.dispatch(payload)
	rw.WriteHeader(http.StatusOK)
}

func (w *WebhookServer) dispatch(p activityPayload) {
	for _, ev := range p.DirectMessageEvents {
		if ev.Type != "message_create" {
			continue
		}
		dm := ev.toDirectMessage()
		w.logger.Info("webhook direct message", "dm_id", dm.ID, "sender_id", dm.SenderID)
		w.bus.Publish(domain.Event{Kind: domain.EventDirectMessage, DirectMessage: &dm})
	}
	for _, t := range p.TweetCreateEvents {
		if t.IDStr == "" {
			continue
		}
		if w.botID != "" && t.User.IDStr == w.botID {
			w.logger.Debug("skipping own post from webhook", "post_id", t.IDStr)
			continue
		}
		w.logger.Info("webhook post created", "post_id", t.IDStr, "author", t.User.ScreenName)
		w.bus.Publish(domain.Event{Kind: domain.EventPostCreated, PostID: t.IDStr})
	}
}

// CRCResponse computes the response_token for a CRC challenge.
func CRCResponse(consumerSecret, crcToken string) string {
	return "sha256=" + sign(consumerSecret, []byte(crcToken))
}

func sign(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// verifySignature checks the delivery signature header against body.
func verifySignature(body []byte, secret, signature string) bool {
	expected := "sha256=" + sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
