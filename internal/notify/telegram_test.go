package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khrees2412/applyflow/pkg/models"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func reviewJob() *models.Job {
	score := 82
	return &models.Job{
		ID:         "j1",
		Title:      "Senior AI Engineer",
		Company:    "R&D <Labs>",
		URL:        "https://boards.greenhouse.io/rd/jobs/1",
		MatchScore: &score,
	}
}

func TestNotifyPendingReview(t *testing.T) {
	fake := &fakeSender{}
	tg := &Telegram{bot: fake, chatID: 42, logger: zap.NewNop()}

	resume := &models.TailoredResume{ExtractedKeywords: []string{"llm", "python"}}
	require.NoError(t, tg.NotifyPendingReview(context.Background(), reviewJob(), resume))
	require.Len(t, fake.sent, 1)

	msg, ok := fake.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "R&amp;D &lt;Labs&gt;")
	assert.Contains(t, msg.Text, "Match score: 82")
	assert.Contains(t, msg.Text, "llm, python")
	assert.Contains(t, msg.Text, "applyflow review confirm j1")
}

func TestNotifyPendingReviewErrors(t *testing.T) {
	fake := &fakeSender{err: errors.New("chat not found")}
	tg := &Telegram{bot: fake, chatID: 42, logger: zap.NewNop()}

	err := tg.NotifyPendingReview(context.Background(), reviewJob(), nil)
	assert.ErrorContains(t, err, "chat not found")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = tg.NotifyPendingReview(ctx, reviewJob(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, fake.sent, 1)
}

func TestNewTelegramValidates(t *testing.T) {
	_, err := NewTelegram("", 1, nil)
	assert.Error(t, err)
	_, err = NewTelegram("token", 0, nil)
	assert.Error(t, err)
}
