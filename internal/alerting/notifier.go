package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrDelivery wraps every failure to hand an alert to the chat platform.
var ErrDelivery = errors.New("alerting: delivery failed")

// Notification 封装告警上下文。
type Notification struct {
	Destination  string
	ItemID       string
	ItemName     string
	SetName      string
	CardNumber   string
	Image        string
	SourceKey    string
	SourceLabel  string
	OldPrice     decimal.Decimal
	NewPrice     decimal.Decimal
	ChangePct    decimal.Decimal
	ThresholdPct decimal.Decimal
	Currency     string
	ObservedAt   time.Time
}

// Increase reports whether the price went up (or stayed flat).
func (n Notification) Increase() bool {
	return n.NewPrice.GreaterThanOrEqual(n.OldPrice)
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。chatID is used when a
// notification carries no destination of its own.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	chatID := note.Destination
	if chatID == "" {
		chatID = n.chatID
	}
	if chatID == "" {
		return fmt.Errorf("%w: telegram chat id missing", ErrDelivery)
	}

	payload := map[string]string{
		"chat_id": chatID,
		"text":    RenderText(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal telegram payload: %w", ErrDelivery, err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create telegram request: %w", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send telegram request: %w", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: telegram 响应码异常: %d", ErrDelivery, resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("%w: telegram 返回 ok=false", ErrDelivery)
		}
	}

	n.logger.Info().Str("chat_id", chatID).
		Str("item_id", note.ItemID).
		Str("source", note.SourceKey).
		Msg("告警已发送 (Telegram)")
	return nil
}

// DiscordNotifier posts an embed to a channel through the Discord bot REST API.
type DiscordNotifier struct {
	botToken string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewDiscordNotifier constructs a Discord notifier.
func NewDiscordNotifier(botToken, baseURL string, timeout time.Duration, logger zerolog.Logger) *DiscordNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://discord.com/api/v10"
	}

	return &DiscordNotifier{
		botToken: botToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_discord").Logger(),
	}
}

// Notify creates a message in note.Destination.
func (n *DiscordNotifier) Notify(ctx context.Context, note Notification) error {
	if note.Destination == "" {
		return fmt.Errorf("%w: discord channel id missing", ErrDelivery)
	}

	body, err := json.Marshal(discordMessage{Embeds: []discordEmbed{buildEmbed(note)}})
	if err != nil {
		return fmt.Errorf("%w: marshal discord payload: %w", ErrDelivery, err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", n.baseURL, note.Destination)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create discord request: %w", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+n.botToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send discord request: %w", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseDiscordError(resp)
	}

	n.logger.Info().Str("channel_id", note.Destination).
		Str("item_id", note.ItemID).
		Str("source", note.SourceKey).
		Msg("alert delivered (Discord)")
	return nil
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Color       int               `json:"color"`
	Timestamp   string            `json:"timestamp,omitempty"`
	Thumbnail   *discordThumbnail `json:"thumbnail,omitempty"`
}

type discordThumbnail struct {
	URL string `json:"url"`
}

const (
	colorGreen = 0x2ecc71
	colorRed   = 0xe74c3c
)

func buildEmbed(note Notification) discordEmbed {
	embed := discordEmbed{
		Title:       fmt.Sprintf("%s Price Alert: %s", arrow(note), itemName(note)),
		Description: strings.Join(detailLines(note), "\n"),
		Color:       colorRed,
	}
	if note.Increase() {
		embed.Color = colorGreen
	}
	if !note.ObservedAt.IsZero() {
		embed.Timestamp = note.ObservedAt.UTC().Format(time.RFC3339)
	}
	if note.Image != "" {
		embed.Thumbnail = &discordThumbnail{URL: note.Image}
	}
	return embed
}

func parseDiscordError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	}
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("%w: discord api error (%d): %s", ErrDelivery, resp.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("%w: discord api error (%d)", ErrDelivery, resp.StatusCode)
}

// LogNotifier only logs alerts. Useful for dry runs and local setups.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify writes the alert to the log.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Info().
		Str("destination", note.Destination).
		Str("item_id", note.ItemID).
		Str("source", note.SourceKey).
		Str("old_price", note.OldPrice.String()).
		Str("new_price", note.NewPrice.String()).
		Str("change_pct", note.ChangePct.StringFixed(1)).
		Msg(strings.ReplaceAll(RenderText(note), "\n", " | "))
	return nil
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*DiscordNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
