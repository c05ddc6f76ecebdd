package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"crypto-signal-bot/internal/model"
)

// TelegramNotifier delivers alerts to a Telegram chat via the Bot API,
// attaching a rendered chart when a renderer is configured.
type TelegramNotifier struct {
	bot      *tgbotapi.BotAPI
	chatID   int64
	renderer Renderer
}

// NewTelegramNotifier authenticates against the Bot API. renderer may be
// nil, in which case alerts go out as text only.
func NewTelegramNotifier(token string, chatID int64, renderer Renderer) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authenticate: %w", err)
	}
	log.Printf("[telegram] authorized as @%s", bot.Self.UserName)
	return &TelegramNotifier{bot: bot, chatID: chatID, renderer: renderer}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, alert model.Alert, chart *model.ChartSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := FormatAlert(alert)

	// Chart failures degrade to a text alert, never block delivery.
	if chart != nil && t.renderer != nil {
		png, err := t.renderer.Render(chart)
		if err != nil {
			log.Printf("[telegram] WARNING: chart render failed for %s: %v", alert.Pair, err)
		} else {
			photo := tgbotapi.NewPhoto(t.chatID, tgbotapi.FileBytes{
				Name:  chartFileName(alert),
				Bytes: png,
			})
			photo.Caption = text
			photo.ParseMode = "Markdown"
			if _, err := t.bot.Send(photo); err != nil {
				return fmt.Errorf("telegram: send photo: %w", err)
			}
			return nil
		}
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

// FormatAlert renders the Telegram message body for an alert.
func FormatAlert(a model.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s* %s\n", severityEmoji(a.Severity), a.Pair, conditionText(a.Condition))
	fmt.Fprintf(&b, "%s · %s · %s\n", a.Exchange, a.Timeframe, a.Indicator)
	fmt.Fprintf(&b, "Value: `%.4f`  Price: `%.4f`\n", a.Value, a.Price)
	fmt.Fprintf(&b, "_%s_", a.Timestamp.UTC().Format("2006-01-02 15:04 UTC"))
	return b.String()
}

func severityEmoji(s model.Severity) string {
	switch s {
	case model.SeverityWarning:
		return "⚠️"
	case model.SeverityCritical:
		return "🚨"
	default:
		return "ℹ️"
	}
}

func conditionText(c model.Condition) string {
	switch c {
	case model.CondGoldenCross:
		return "golden cross"
	case model.CondDeathCross:
		return "death cross"
	case model.CondOverbought:
		return "overbought"
	case model.CondOversold:
		return "oversold"
	case model.CondMACDBullish:
		return "MACD bullish cross"
	case model.CondMACDBearish:
		return "MACD bearish cross"
	case model.CondOBVBullish:
		return "OBV bullish cross"
	case model.CondOBVBearish:
		return "OBV bearish cross"
	default:
		return string(c)
	}
}

func chartFileName(a model.Alert) string {
	pair := strings.ReplaceAll(a.Pair, "/", "")
	return fmt.Sprintf("%s_%s_%s.png", pair, a.Timeframe, string(a.Condition))
}
