package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FCMChannel posts JSON to an FCM HTTPv1 endpoint using a server key or
// oauth token. It is the last hop in the chain: a device with no live
// socket may still receive a push.
type FCMChannel struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewFCMChannel(endpoint, key string) *FCMChannel {
	return &FCMChannel{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (f *FCMChannel) Deliver(ctx context.Context, recipientID, event string, payload any) error {
	if f.Endpoint == "" {
		return ErrNoRecipient
	}
	body := map[string]any{"message": map[string]any{
		"topic": "account-" + recipientID,
		"data":  map[string]any{"event": event, "payload": payload},
	}}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fcm: status %d", resp.StatusCode)
	}
	return nil
}
