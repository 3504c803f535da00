package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"membership-settlement/internal/config"
	"membership-settlement/internal/domain"
	"membership-settlement/internal/domain/ports/repository"
	"membership-settlement/internal/usecase"
)

// OperatorBot is a Telegram front door for the back-office team: it lets an
// allowlisted operator mark a bank transfer as received without opening the
// web console. Updates are processed by a small worker pool.
type OperatorBot struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	uc          usecase.SettlementUseCase
	subs        repository.SubscriptionRepository
	operatorIDs map[int64]struct{}
	workers     int
	log         *zerolog.Logger

	cancelPolling context.CancelFunc
}

func NewOperatorBot(cfg *config.BotConfig, uc usecase.SettlementUseCase, subs repository.SubscriptionRepository, logger *zerolog.Logger) (*OperatorBot, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if uc == nil {
		return nil, errors.New("settlement use case is nil")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	ids := make(map[int64]struct{}, len(cfg.OperatorIDs))
	for _, id := range cfg.OperatorIDs {
		ids[id] = struct{}{}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	return &OperatorBot{
		bot:         bot,
		cfg:         cfg,
		uc:          uc,
		subs:        subs,
		operatorIDs: ids,
		workers:     workers,
		log:         logger,
	}, nil
}

// StartPolling polls Telegram for updates until ctx is canceled.
func (b *OperatorBot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	b.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case update, ok := <-updateChan:
					if !ok {
						return
					}
					b.handleUpdate(ctx, update)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(updateChan)
		for {
			select {
			case update := <-updates:
				select {
				case updateChan <- update:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	b.bot.StopReceivingUpdates()
	wg.Wait()
	return nil
}

func (b *OperatorBot) StopPolling() {
	if b.cancelPolling != nil {
		b.cancelPolling()
	}
}

func (b *OperatorBot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.bot.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("telegram: send reply")
	}
}

func (b *OperatorBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	from := update.Message.From
	chatID := update.Message.Chat.ID

	if _, ok := b.operatorIDs[from.ID]; !ok {
		b.reply(chatID, "You are not authorized to use this bot.")
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	if text == "" || text[0] != '/' {
		b.reply(chatID, "Send /help for the list of commands.")
		return
	}
	b.handleCommand(ctx, chatID, text)
}

func (b *OperatorBot) handleCommand(ctx context.Context, chatID int64, text string) {
	fields := strings.Fields(text)
	cmd := fields[0]
	switch cmd {
	case "/start", "/help":
		b.reply(chatID, "Commands:\n"+
			"/paid <order-id> — transfer received for a membership order\n"+
			"/paidext <order-id> — transfer received for an extension order\n"+
			"/due — list subscriptions awaiting their next payment")
	case "/paid", "/paidext":
		if len(fields) != 2 {
			b.reply(chatID, fmt.Sprintf("Usage: %s <order-id>", cmd))
			return
		}
		complete := b.uc.CompleteProductBankTransfer
		if cmd == "/paidext" {
			complete = b.uc.CompleteExtensionBankTransfer
		}
		b.settle(ctx, chatID, fields[1], complete)
	case "/due":
		b.listDue(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Send /help for the list of commands.")
	}
}

func (b *OperatorBot) settle(ctx context.Context, chatID int64, orderID string, complete func(ctx context.Context, orderID string) error) {
	err := complete(ctx, orderID)
	switch {
	case err == nil:
		b.reply(chatID, fmt.Sprintf("Order %s settled.", orderID))
	case errors.Is(err, domain.ErrAlreadyExists):
		b.reply(chatID, fmt.Sprintf("Order %s was already settled.", orderID))
	case errors.Is(err, domain.ErrNotFound):
		b.reply(chatID, fmt.Sprintf("Order %s not found.", orderID))
	case errors.Is(err, domain.ErrMissingPlanField), errors.Is(err, domain.ErrInvalidArgument):
		b.reply(chatID, fmt.Sprintf("Order %s cannot be settled: %v", orderID, err))
	default:
		b.log.Error().Err(err).Str("order_id", orderID).Msg("telegram: settlement failed")
		b.reply(chatID, fmt.Sprintf("Settlement of %s failed, see the logs.", orderID))
	}
}

func (b *OperatorBot) listDue(ctx context.Context, chatID int64) {
	due, err := b.subs.ListDue(ctx, nil, time.Now(), 20)
	if err != nil {
		b.log.Error().Err(err).Msg("telegram: list due subscriptions")
		b.reply(chatID, "Failed to list due subscriptions.")
		return
	}
	if len(due) == 0 {
		b.reply(chatID, "No subscriptions are due.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Due subscriptions:\n")
	for _, s := range due {
		next := "-"
		if s.NextPaymentDate != nil {
			next = s.NextPaymentDate.Format("2006-01-02")
		}
		fmt.Fprintf(&sb, "%s — parent order %s, %d payment(s) left, next %s\n",
			s.ID, s.ParentOrderID, s.RemainingPayments, next)
	}
	b.reply(chatID, sb.String())
}
