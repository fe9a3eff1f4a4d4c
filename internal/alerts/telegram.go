package alerts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/explorer"
)

// maxMessageLength is the Telegram Bot API's hard cap on a text message's
// length (§6, chat-bot sink contract).
const maxMessageLength = 4096

// defaultRetryCount/defaultRetryDelay apply when a sink's config leaves
// the chat-bot retry knobs at their zero value (§6).
const (
	defaultRetryCount = 3
	defaultRetryDelay = 2 * time.Second
)

// TelegramSink posts formatted alerts through the Telegram Bot API
// (§4.5, §6 kind "telegram"). The corpus carries no Telegram client
// library, so requests go through net/http against the bot's
// sendMessage endpoint directly.
type TelegramSink struct {
	id           string
	botToken     string
	chatID       string
	networkID    string
	minSeverity  chain.Severity
	retryCount   int
	retryDelay   time.Duration
	explorer     *explorer.Explorer
	client       *http.Client
}

// NewTelegramSink builds a Telegram sink identified by id and bound to a
// bot token and chat. retryCount <= 0 and retryDelay <= 0 fall back to
// their defaults (§6).
func NewTelegramSink(id, botToken, chatID, networkID string, minSeverity chain.Severity, retryCount int, retryDelay time.Duration, exp *explorer.Explorer) *TelegramSink {
	if retryCount <= 0 {
		retryCount = defaultRetryCount
	}
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &TelegramSink{
		id:          id,
		botToken:    botToken,
		chatID:      chatID,
		networkID:   networkID,
		minSeverity: minSeverity,
		retryCount:  retryCount,
		retryDelay:  retryDelay,
		explorer:    exp,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *TelegramSink) ID() string { return s.id }

func (s *TelegramSink) Send(ctx context.Context, alert chain.Alert) error {
	if alert.Severity < s.minSeverity {
		return nil
	}
	message := fmt.Sprintf("*%s - %s*\n%s.\nBlock: %s\nTransaction: %s",
		alert.Title, s.networkID, alert.Description, s.blockLink(alert), s.txLink(alert))
	return s.sendMessage(ctx, message)
}

func (s *TelegramSink) SendResolve(ctx context.Context, alert chain.Alert, firstSeen time.Time) error {
	message := fmt.Sprintf("*%s - %s*\nIssue from %s was resolved.", alert.Title, s.networkID, firstSeen.Format(time.RFC3339))
	return s.sendMessage(ctx, message)
}

func (s *TelegramSink) blockLink(alert chain.Alert) string {
	if alert.Metadata.BlockHeight == nil {
		return "N/A"
	}
	h := *alert.Metadata.BlockHeight
	return fmt.Sprintf("[%d](%s)", h, s.explorer.BlockURL(h))
}

func (s *TelegramSink) txLink(alert chain.Alert) string {
	if alert.Metadata.TxID == nil {
		return "N/A"
	}
	id := *alert.Metadata.TxID
	return fmt.Sprintf("[%s](%s)", id, s.explorer.TxURL(id))
}

// sendMessage posts message via the bot's sendMessage endpoint, honoring
// the sink's configured retry count/delay on transient failure (§6: "a
// maximum message length of 4096 characters, configurable retry
// count/delay"). It truncates the body first since Telegram rejects
// anything longer outright.
func (s *TelegramSink) sendMessage(ctx context.Context, message string) error {
	if len(message) > maxMessageLength {
		message = message[:maxMessageLength]
	}

	var lastErr error
	for attempt := 0; attempt <= s.retryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
		if lastErr = s.postOnce(ctx, message); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (s *TelegramSink) postOnce(ctx context.Context, message string) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)
	form := url.Values{
		"chat_id":                  {s.chatID},
		"text":                     {message},
		"parse_mode":               {"MarkdownV2"},
		"disable_web_page_preview": {"true"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("alerts: build telegram request: %w", err)
	}
	req.URL.RawQuery = form.Encode()

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("alerts: send telegram message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alerts: telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
