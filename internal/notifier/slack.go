package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/a11yjobs/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier posts messages to Slack channels through chat.postMessage
// with a bot token.
type SlackNotifier struct {
	baseURL    string
	botToken   string
	channels   []string
	httpClient *http.Client
	logger     *slog.Logger
	gap        time.Duration // pause between channels
}

// NewSlackNotifier returns a notifier that posts to every channel in channels.
func NewSlackNotifier(baseURL, botToken string, channels []string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		botToken:   botToken,
		channels:   channels,
		httpClient: httpClient,
		logger:     logger,
		gap:        500 * time.Millisecond,
	}
}

// Deliver posts text to each channel independently and reports one result
// per channel. Failures are logged and never stop the remaining channels.
func (s *SlackNotifier) Deliver(ctx context.Context, text string) []model.DeliveryResult {
	results := make([]model.DeliveryResult, 0, len(s.channels))
	for i, ch := range s.channels {
		if i > 0 && s.gap > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.gap):
			}
		}

		err := s.postMessage(ctx, ch, text)
		if err != nil {
			s.logger.Error("slack delivery failed", "channel", ch, "error", err)
		} else {
			s.logger.Info("slack message sent", "channel", ch)
		}
		results = append(results, model.DeliveryResult{Destination: ch, Delivered: err == nil, Err: err})
	}
	return results
}

type postMessageRequest struct {
	Channel     string `json:"channel"`
	Text        string `json:"text"`
	UnfurlLinks bool   `json:"unfurl_links"`
	UnfurlMedia bool   `json:"unfurl_media"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *SlackNotifier) postMessage(ctx context.Context, channel, text string) error {
	body, err := json.Marshal(postMessageRequest{Channel: channel, Text: text})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, resp, err := s.post(ctx, body)
	if err != nil {
		return err
	}

	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "channel", channel, "retry_after", retryAfter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
		status, _, resp, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("retry: %w", err)
		}
	}

	if status != http.StatusOK {
		return &model.HTTPError{StatusCode: status, Err: fmt.Errorf("slack returned %d", status)}
	}
	if !resp.OK {
		return fmt.Errorf("slack error: %s", resp.Error)
	}
	return nil
}

// post sends one chat.postMessage call. retryAfter is only set on 429.
func (s *SlackNotifier) post(ctx context.Context, body []byte) (int, time.Duration, postMessageResponse, error) {
	var out postMessageResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return 0, 0, out, fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, out, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		if secs <= 0 {
			secs = 1
		}
		return resp.StatusCode, time.Duration(secs) * time.Second, out, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, out, fmt.Errorf("read slack response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(raw, &out); err != nil {
			return 0, 0, out, fmt.Errorf("parse slack response: %w", err)
		}
	}
	return resp.StatusCode, 0, out, nil
}

// SendTestMessage sends a fixed message to verify the integration works.
func SendTestMessage(ctx context.Context, n model.Notifier) []model.DeliveryResult {
	return n.Deliver(ctx, "✅ a11yjobs test message: Slack integration verified.")
}
