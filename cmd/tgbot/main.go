package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"Voltaris/internal/config"
	"Voltaris/internal/notify"
	"Voltaris/internal/repo"

	"github.com/sirupsen/logrus"
)

const pollTimeout = 20 * time.Second

// bot is the subset of the Bot API the poller needs.
type bot interface {
	GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]notify.Update, error)
	AnswerCallback(ctx context.Context, id, text string) error
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
}

type poller struct {
	bot     bot
	leads   repo.LeadRepository
	adminID int64
	log     *logrus.Logger
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Telegram.Token == "" || cfg.Telegram.AdminChatID == 0 {
		logger.Fatal("TOKEN_BOT or ADMIN_PEER_ID missing")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := repo.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	tg := notify.NewTelegram(cfg.Telegram, logger)
	tg.Client.Timeout = pollTimeout + 10*time.Second

	p := &poller{bot: tg, leads: repo.NewSQLRepository(db), adminID: cfg.Telegram.AdminChatID, log: logger}
	logger.Info("Lead bot started")
	p.run(ctx)
	logger.Info("Lead bot stopped")
}

func (p *poller) run(ctx context.Context) {
	offset := 0
	for ctx.Err() == nil {
		updates, err := p.bot.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warnf("getUpdates error: %v", err)
			sleep(ctx, 2*time.Second)
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.CallbackQuery != nil {
				p.handleCallback(ctx, u.CallbackQuery)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

var actionStatus = map[string]repo.LeadStatus{
	notify.ActionContacted: repo.LeadContacted,
	notify.ActionSpam:      repo.LeadSpam,
}

func (p *poller) answer(ctx context.Context, id, text string) {
	if err := p.bot.AnswerCallback(ctx, id, text); err != nil {
		p.log.Warnf("answerCallbackQuery: %v", err)
	}
}

func (p *poller) handleCallback(ctx context.Context, cb *notify.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat.ID != p.adminID {
		p.answer(ctx, cb.ID, "Not allowed")
		return
	}
	action, idStr, ok := strings.Cut(cb.Data, ":")
	status, known := actionStatus[action]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if !ok || err != nil {
		p.answer(ctx, cb.ID, "Bad data")
		return
	}
	if !known {
		p.answer(ctx, cb.ID, "Unknown action")
		return
	}

	if err := p.leads.UpdateLeadStatus(ctx, id, status); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			p.answer(ctx, cb.ID, "Lead not found")
			return
		}
		p.log.Errorf("update lead %d: %v", id, err)
		p.answer(ctx, cb.ID, "Storage error")
		return
	}
	p.log.WithField("lead_id", id).Infof("lead marked %s from telegram", status)

	p.answer(ctx, cb.ID, "Marked "+string(status))
	text := fmt.Sprintf("%s\n\nStatus: %s", cb.Message.Text, status)
	if err := p.bot.EditMessage(ctx, cb.Message.Chat.ID, cb.Message.MessageID, text); err != nil {
		p.log.Warnf("editMessageText: %v", err)
	}
}
