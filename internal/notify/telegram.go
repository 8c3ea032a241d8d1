// Package notify tells the user that a prefilled application waits for review.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/khrees2412/applyflow/internal/logger"
	"github.com/khrees2412/applyflow/pkg/models"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts review reminders to one chat.
type Telegram struct {
	bot    sender
	chatID int64
	logger *zap.Logger
}

// NewTelegram connects to the bot API with token.
func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is empty")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, logger: logger.OrNop(log)}, nil
}

// NotifyPendingReview sends the job summary. The send is abandoned if ctx is already done.
func (t *Telegram) NotifyPendingReview(ctx context.Context, job *models.Job, resume *models.TailoredResume) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, pendingReviewText(job, resume))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	t.logger.Debug("review reminder sent", logger.Job(job.ID, job.Company)...)
	return nil
}

func pendingReviewText(job *models.Job, resume *models.TailoredResume) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 <b>Ready for review</b>: %s\n", html.EscapeString(job.Title))
	fmt.Fprintf(&b, "🏢 %s\n", html.EscapeString(job.Company))
	if job.MatchScore != nil {
		fmt.Fprintf(&b, "🎯 Match score: %d\n", *job.MatchScore)
	}
	if resume != nil && len(resume.ExtractedKeywords) > 0 {
		fmt.Fprintf(&b, "🛠 %s\n", html.EscapeString(strings.Join(resume.ExtractedKeywords, ", ")))
	}
	if job.URL != "" {
		fmt.Fprintf(&b, "🔗 <a href=\"%s\">Open application</a>\n", html.EscapeString(job.URL))
	}
	fmt.Fprintf(&b, "The form is filled but not submitted. Run <code>applyflow review confirm %s</code> after you submit it.",
		html.EscapeString(job.ID))
	return b.String()
}
