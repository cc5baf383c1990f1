// Package telegram sends BMD recommendation summaries via the Telegram Bot API.
// Messages use MarkdownV2 and delivery is retried with linear backoff.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"

	"github.com/rewired-gh/hawcbmd/internal/format"
	"github.com/rewired-gh/hawcbmd/internal/models"
	"github.com/rewired-gh/hawcbmd/internal/recommend"
)

// sender is the part of tgbotapi.BotAPI the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: create bot")
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: invalid chat ID")
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendRecommendation sends the outcome of a recommendation run.
func (c *Client) SendRecommendation(run *models.Run) error {
	return c.send(formatRun(run))
}

// SendError reports a failed run.
func (c *Client) SendError(endpointID int, err error) error {
	text := fmt.Sprintf("⚠️ *BMD recommendation failed*\n\nEndpoint %d\n`%s`",
		endpointID, escapeCode(err.Error()))
	return c.send(text)
}

// SendRecovery reports that runs succeed again after failures.
func (c *Client) SendRecovery(endpointID, failures int) error {
	text := fmt.Sprintf("✅ *BMD recommendation recovered*\n\nEndpoint %d succeeded after %d failed %s",
		endpointID, failures, plural(failures, "run", "runs"))
	return c.send(text)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			time.Sleep(c.retryDelayBase * time.Duration(i))
		}
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return eris.Wrapf(lastErr, "telegram: send message after %d retries", c.maxRetries)
}

// formatRun renders a run as a MarkdownV2 message.
func formatRun(run *models.Run) string {
	var b strings.Builder
	b.WriteString("🧪 *BMD recommendation*\n\n")

	name := run.EndpointName
	if name == "" {
		name = fmt.Sprintf("Endpoint %d", run.EndpointID)
	}
	fmt.Fprintf(&b, "*%s* \\(%s\\)\n", escapeMarkdownV2(name), escapeMarkdownV2(string(run.DataType)))
	fmt.Fprintf(&b, "📅 %s\n\n", escapeMarkdownV2(run.CreatedAt.UTC().Format("2006-01-02 15:04:05")))

	byID := make(map[int]models.Model, len(run.Models))
	for _, m := range run.Models {
		byID[m.ID] = m
	}

	for _, s := range recommend.Summarize(run.Models) {
		fmt.Fprintf(&b, "BMR %d: ✅ %d  ⚠️ %d  ❌ %d\n", s.BMRIndex+1,
			s.Counts[models.BinPass], s.Counts[models.BinWarning], s.Counts[models.BinFailure])
		if len(s.Recommended) == 0 {
			b.WriteString("   No model recommended\n\n")
			continue
		}
		for _, id := range s.Recommended {
			m := byID[id]
			fmt.Fprintf(&b, "   ⭐ *%s* by %s: BMD %s, BMDL %s\n",
				escapeMarkdownV2(m.Name), escapeMarkdownV2(s.Variable),
				escapeMarkdownV2(format.Number(m.Output.BMD)), escapeMarkdownV2(format.Number(m.Output.BMDL)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeCode escapes text placed inside a MarkdownV2 code span.
func escapeCode(text string) string {
	r := strings.NewReplacer("\\", "\\\\", "`", "\\`")
	return r.Replace(text)
}
