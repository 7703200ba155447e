// Package telegram adapts the bot API to the application services: it routes
// incoming updates and renders outgoing reply messages.
package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/application/admin"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/application/checkout"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/application/reply"
)

// NewAPI authorizes the bot against the Telegram API.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

// Notifier sends out-of-band messages: operator alerts and buyer
// notifications that are not direct replies to an update.
type Notifier struct {
	api         *tgbotapi.BotAPI
	adminChatID int64
}

func NewNotifier(api *tgbotapi.BotAPI, adminChatID int64) *Notifier {
	return &Notifier{api: api, adminChatID: adminChatID}
}

func (n *Notifier) NotifyAdmin(_ context.Context, text string) error {
	_, err := n.api.Send(tgbotapi.NewMessage(n.adminChatID, text))
	return err
}

func (n *Notifier) NotifyUser(_ context.Context, chatID int64, text string) error {
	_, err := n.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// Router consumes the long-polling update stream and dispatches to the
// checkout workflow and the admin service.
type Router struct {
	api         *tgbotapi.BotAPI
	checkout    *checkout.Workflow
	admin       *admin.Service
	adminChatID int64
	log         *zap.Logger
}

func NewRouter(api *tgbotapi.BotAPI, wf *checkout.Workflow, adminSvc *admin.Service, adminChatID int64, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		api:         api,
		checkout:    wf,
		admin:       adminSvc,
		adminChatID: adminChatID,
		log:         logger.With(zap.String("component", "telegram")),
	}
}

// Run blocks on the update stream until the context is canceled.
func (r *Router) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := r.api.GetUpdatesChan(cfg)

	r.log.Info("telegram_polling_started", zap.String("username", r.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			r.api.StopReceivingUpdates()
			r.log.Info("telegram_polling_stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			r.handleUpdate(ctx, upd)
		}
	}
}

// handleUpdate isolates one update: a panic in a handler is logged and the
// polling loop keeps going.
func (r *Router) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("update_handler_panic", zap.Any("panic", rec))
		}
	}()

	switch {
	case upd.CallbackQuery != nil:
		r.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		r.handleMessage(ctx, upd.Message)
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// ack first so the client stops showing the spinner
	if _, err := r.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		r.log.Warn("callback_ack_failed", zap.Error(err))
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	var (
		msgs []reply.Message
		err  error
	)
	switch data := cb.Data; {
	case strings.HasPrefix(data, checkout.CallbackBuyPrefix):
		msgs = r.checkout.BeginCheckout(ctx, chatID, strings.TrimPrefix(data, checkout.CallbackBuyPrefix))
	case data == checkout.CallbackConfirm:
		msgs, err = r.checkout.Confirm(ctx, chatID)
	case data == checkout.CallbackCancel:
		msgs = r.checkout.Cancel(chatID)
	case data == checkout.CallbackJoinWaitlist:
		msgs = r.checkout.JoinWaitlist(chatID)
	case data == checkout.CallbackSkipWaitlist:
		msgs = r.checkout.SkipWaitlist(chatID)
	case data == checkout.CallbackHelp:
		msgs = r.checkout.Help(chatID)
	default:
		r.log.Warn("unknown_callback", zap.String("data", data))
	}
	if err != nil {
		r.log.Error("callback_handling_failed",
			zap.Int64("chat_id", chatID),
			zap.String("data", cb.Data),
			zap.Error(err),
		)
	}
	r.send(msgs)
}

func (r *Router) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	chatID := m.Chat.ID

	if !m.IsCommand() {
		msgs, err := r.checkout.HandleText(ctx, chatID, m.Text)
		if err != nil {
			r.log.Error("text_handling_failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		r.send(msgs)
		return
	}

	var (
		msgs []reply.Message
		err  error
	)
	switch m.Command() {
	case "start":
		msgs = r.checkout.Start(ctx, chatID)
	case "help":
		msgs = r.checkout.Help(chatID)
	case "setstock", "stock", "notify_waitlist":
		if !r.isAdmin(chatID) {
			r.log.Warn("admin_command_unauthorized",
				zap.Int64("chat_id", chatID),
				zap.String("command", m.Command()),
			)
			msgs = []reply.Message{reply.Text(chatID, "Неизвестная команда. Попробуйте /start или /help.")}
			break
		}
		switch m.Command() {
		case "setstock":
			msgs = r.admin.SetStock(ctx, chatID, m.CommandArguments())
		case "stock":
			msgs = r.admin.Stock(ctx, chatID)
		case "notify_waitlist":
			msgs, err = r.admin.NotifyWaitlist(ctx, chatID)
		}
	default:
		msgs = []reply.Message{reply.Text(chatID, "Неизвестная команда. Попробуйте /start или /help.")}
	}
	if err != nil {
		r.log.Error("command_handling_failed",
			zap.Int64("chat_id", chatID),
			zap.String("command", m.Command()),
			zap.Error(err),
		)
	}
	r.send(msgs)
}

func (r *Router) isAdmin(chatID int64) bool {
	return chatID == r.adminChatID
}

func (r *Router) send(msgs []reply.Message) {
	for _, m := range msgs {
		out := tgbotapi.NewMessage(m.ChatID, m.Text)
		if len(m.Keyboard) > 0 {
			out.ReplyMarkup = renderKeyboard(m.Keyboard)
		}
		if _, err := r.api.Send(out); err != nil {
			r.log.Error("send_failed", zap.Int64("chat_id", m.ChatID), zap.Error(err))
		}
	}
}

func renderKeyboard(rows [][]reply.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
			}
		}
		out = append(out, btns)
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}
