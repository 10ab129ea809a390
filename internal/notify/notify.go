package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const dispatchTimeout = 5 * time.Second

type MessageKind string

const (
	KindTransferSent        MessageKind = "transfer_sent"
	KindTransferReceived    MessageKind = "transfer_received"
	KindSwapCompleted       MessageKind = "swap_completed"
	KindInsufficientBalance MessageKind = "insufficient_balance"
	KindChainUnavailable    MessageKind = "chain_unavailable"
	KindInternalError       MessageKind = "internal_error"
)

var messageTexts = map[MessageKind]string{
	KindTransferSent:        "Your transfer is complete.",
	KindTransferReceived:    "You received a payment.",
	KindSwapCompleted:       "Your swap is complete.",
	KindInsufficientBalance: "You don't have enough balance for this operation.",
	KindChainUnavailable:    "The network is busy right now, please try again later.",
	KindInternalError:       "Something went wrong with your operation. Our team is on it.",
}

// Dispatcher delivers outcome messages to the chat surface webhook. Delivery
// is best-effort: failures are logged and never propagate into the saga.
type Dispatcher struct {
	logs       *zap.SugaredLogger
	client     *http.Client
	webhookURL string
}

func NewDispatcher(logger *zap.SugaredLogger, client *http.Client, webhookURL string) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: dispatchTimeout}
	}
	return &Dispatcher{
		logs:       logger,
		client:     client,
		webhookURL: webhookURL,
	}
}

type webhookPayload struct {
	ChannelUserID string         `json:"channel_user_id"`
	Kind          string         `json:"kind"`
	Message       string         `json:"message"`
	Data          map[string]any `json:"data,omitempty"`
}

func (d *Dispatcher) Notify(ctx context.Context, userKey string, kind MessageKind, data map[string]any) {
	body, err := json.Marshal(webhookPayload{
		ChannelUserID: userKey,
		Kind:          string(kind),
		Message:       messageTexts[kind],
		Data:          data,
	})
	if err != nil {
		d.logs.Errorw("failed to marshal notification", "error", err, "kind", kind)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		d.logs.Errorw("failed to build notification request", "error", err, "kind", kind)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logs.Errorw("failed to deliver notification", "error", err, "kind", kind, "user_key", userKey)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logs.Errorw("notification webhook rejected",
			"status", resp.StatusCode,
			"kind", kind,
			"user_key", userKey,
			"error", fmt.Sprintf("webhook returned status %d", resp.StatusCode))
		return
	}

	d.logs.Infow("notification delivered", "kind", kind, "user_key", userKey)
}
