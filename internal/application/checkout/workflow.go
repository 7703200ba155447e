// Package checkout drives the buyer dialog from product selection to a paid
// payment link. The confirmation step is the consistency-critical section:
// payment creation, stock reservation and the durable order save happen in a
// fixed order with compensation on failure.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/application/reply"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/catalog"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/inventory"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/order"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/metrics"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/retry"
)

const (
	msgAskPhone = "📱 Введите ваш номер телефона в формате +7XXXXXXXXXX или 8XXXXXXXXXX:"
	msgBadPhone = "❌ Неверный формат номера. Пример: +79991234567. Попробуйте ещё раз:"

	msgAskName = "✍️ Введите вашу фамилию и имя (кириллицей):"
	msgBadName = "❌ Имя может содержать только кириллицу, пробелы и дефисы, от 3 до 100 символов. Попробуйте ещё раз:"

	msgAskAddress      = "📦 Введите адрес доставки по России: город, улица, дом, индекс."
	msgBadAddressLen   = "❌ Адрес должен быть от 5 до 500 символов. Попробуйте ещё раз:"
	msgAddressNotLocal = "❌ Похоже, адрес находится не в России. Мы доставляем только по России. Укажите город или регион:"

	msgAskEmail = "📧 Введите ваш email — отправим сертификат на него:"
	msgBadEmail = "❌ Неверный формат email. Пример: name@example.ru. Попробуйте ещё раз:"

	msgUseButtons     = "Пожалуйста, воспользуйтесь кнопками под сообщением выше 🙂"
	msgNoSession      = "Чтобы оформить заказ, нажмите /start и выберите товар."
	msgCanceled       = "Заказ отменён. Возвращайтесь, когда будете готовы! 🌿"
	msgCheckoutFailed = "⚠️ Произошла ошибка при оформлении заказа. Попробуйте, пожалуйста, позже."
	msgPaymentFailed  = "⚠️ Не удалось создать платёж. Попробуйте подтвердить заказ ещё раз через пару минут."

	msgOutOfStock = "😔 К сожалению, ЭКОамулеты закончились.\nОставьте номер телефона, и мы напишем вам, как только они снова появятся."
	msgWaitlisted = "✅ Записали! Как только ЭКОамулеты появятся, мы вам сообщим."
	msgNoWaitlist = "Хорошо! Загляните к нам позже 🌿"

	msgSocialProof = "💚 Уже больше сотни человек носят ЭКОамулет и поддерживают мастерскую."
)

// Params collects the workflow dependencies wired in main.
type Params struct {
	Catalog    *catalog.Catalog
	Ledger     StockLedger
	Store      order.Store
	Pending    PendingRegistry
	Gateway    Gateway
	Retrier    *retry.Executor
	Notifier   Notifier
	Validator  *Validator
	Thresholds inventory.Thresholds
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

type Workflow struct {
	catalog    *catalog.Catalog
	ledger     StockLedger
	store      order.Store
	pending    PendingRegistry
	gateway    Gateway
	retrier    *retry.Executor
	notifier   Notifier
	validator  *Validator
	thresholds inventory.Thresholds
	metrics    *metrics.Metrics
	sessions   *Sessions
	log        *zap.Logger
}

func New(p Params) *Workflow {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &Workflow{
		catalog:    p.Catalog,
		ledger:     p.Ledger,
		store:      p.Store,
		pending:    p.Pending,
		gateway:    p.Gateway,
		retrier:    p.Retrier,
		notifier:   p.Notifier,
		validator:  p.Validator,
		thresholds: p.Thresholds,
		metrics:    p.Metrics,
		sessions:   NewSessions(),
		log:        p.Logger.With(zap.String("component", "checkout")),
	}
}

// Start renders the product menu with the live stock count.
func (w *Workflow) Start(ctx context.Context, chatID int64) []reply.Message {
	w.sessions.Delete(chatID)

	text := "🌿 Здравствуйте! Здесь можно заказать ЭКОамулет — украшение ручной работы из эко-материалов, " +
		"или подарить сертификат нашей мастерской.\n\n"

	var keyboard [][]reply.Button
	for _, p := range w.catalog.List() {
		label := fmt.Sprintf("🛒 %s — %s", p.Name, p.PriceRub())
		if p.Kind == catalog.KindCertificate {
			label = fmt.Sprintf("🎁 %s — %s", p.Name, p.PriceRub())
		}
		if p.TracksStock {
			quantity := w.ledger.GetStock(ctx)
			if quantity > 0 {
				text += fmt.Sprintf("В наличии: %d шт.\n", quantity)
			} else {
				text += "Сейчас всё распродано, но можно записаться в лист ожидания.\n"
			}
		}
		keyboard = append(keyboard, []reply.Button{{Label: label, Data: CallbackBuyPrefix + p.ID}})
	}
	keyboard = append(keyboard, []reply.Button{{Label: "ℹ️ Помощь", Data: CallbackHelp}})

	return []reply.Message{{ChatID: chatID, Text: text, Keyboard: keyboard}}
}

func (w *Workflow) Help(chatID int64) []reply.Message {
	return []reply.Message{reply.Text(chatID,
		"Я помогу оформить заказ: выберите товар, ответьте на несколько вопросов и оплатите по ссылке.\n"+
			"Команды:\n/start — меню\n/help — эта подсказка\n"+
			"Если что-то пошло не так, напишите нам — мы обязательно поможем.")}
}

// BeginCheckout opens a dialog for the chosen product. A sold-out tracked
// product short-circuits into the waitlist offer.
func (w *Workflow) BeginCheckout(ctx context.Context, chatID int64, productID string) []reply.Message {
	p, err := w.catalog.Get(productID)
	if err != nil {
		w.log.Warn("unknown_product_selected", zap.String("product_id", productID))
		return []reply.Message{reply.Text(chatID, msgNoSession)}
	}

	if p.TracksStock && w.ledger.GetStock(ctx) <= 0 {
		w.metrics.OutOfStock.Inc()
		w.sessions.Delete(chatID)
		return w.waitlistOffer(chatID)
	}

	w.sessions.Put(Session{ChatID: chatID, State: StateAskPhone, ProductID: p.ID})
	return []reply.Message{reply.Text(chatID, msgAskPhone)}
}

// HandleText routes a free-text message by the session state.
func (w *Workflow) HandleText(ctx context.Context, chatID int64, text string) ([]reply.Message, error) {
	sess, ok := w.sessions.Get(chatID)
	if !ok {
		return []reply.Message{reply.Text(chatID, msgNoSession)}, nil
	}

	switch sess.State {
	case StateAskPhone:
		return w.handlePhone(sess, text), nil
	case StateAskName:
		return w.handleName(sess, text), nil
	case StateAskAddress:
		return w.handleAddress(sess, text), nil
	case StateAskEmail:
		return w.handleEmail(sess, text), nil
	case StateWaitlistPhone:
		return w.handleWaitlistPhone(ctx, sess, text)
	case StateConfirm:
		return []reply.Message{reply.Text(chatID, msgUseButtons)}, nil
	default:
		return []reply.Message{reply.Text(chatID, msgNoSession)}, nil
	}
}

func (w *Workflow) handlePhone(sess Session, text string) []reply.Message {
	phone, err := w.validator.Phone(text)
	if err != nil {
		return []reply.Message{reply.Text(sess.ChatID, msgBadPhone)}
	}
	sess.Phone = phone
	sess.State = StateAskName
	w.sessions.Put(sess)
	return []reply.Message{reply.Text(sess.ChatID, msgAskName)}
}

func (w *Workflow) handleName(sess Session, text string) []reply.Message {
	name, err := w.validator.FullName(text)
	if err != nil {
		return []reply.Message{reply.Text(sess.ChatID, msgBadName)}
	}
	sess.FullName = name

	p, perr := w.catalog.Get(sess.ProductID)
	if perr != nil {
		w.sessions.Delete(sess.ChatID)
		return []reply.Message{reply.Text(sess.ChatID, msgNoSession)}
	}
	switch {
	case p.RequiresAddress():
		sess.State = StateAskAddress
		w.sessions.Put(sess)
		return []reply.Message{reply.Text(sess.ChatID, msgAskAddress)}
	case p.RequiresEmail():
		sess.State = StateAskEmail
		w.sessions.Put(sess)
		return []reply.Message{reply.Text(sess.ChatID, msgAskEmail)}
	default:
		return w.toConfirmation(sess, p)
	}
}

func (w *Workflow) handleAddress(sess Session, text string) []reply.Message {
	address, err := w.validator.Address(text)
	switch {
	case errors.Is(err, ErrAddressCountry):
		return []reply.Message{reply.Text(sess.ChatID, msgAddressNotLocal)}
	case err != nil:
		return []reply.Message{reply.Text(sess.ChatID, msgBadAddressLen)}
	}
	sess.Address = address

	p, perr := w.catalog.Get(sess.ProductID)
	if perr != nil {
		w.sessions.Delete(sess.ChatID)
		return []reply.Message{reply.Text(sess.ChatID, msgNoSession)}
	}
	return w.toConfirmation(sess, p)
}

func (w *Workflow) handleEmail(sess Session, text string) []reply.Message {
	email, err := w.validator.Email(text)
	if err != nil {
		return []reply.Message{reply.Text(sess.ChatID, msgBadEmail)}
	}
	sess.Email = email

	p, perr := w.catalog.Get(sess.ProductID)
	if perr != nil {
		w.sessions.Delete(sess.ChatID)
		return []reply.Message{reply.Text(sess.ChatID, msgNoSession)}
	}
	return w.toConfirmation(sess, p)
}

// toConfirmation stores the confirm state and renders the social-proof note
// together with the order summary and confirm/cancel buttons.
func (w *Workflow) toConfirmation(sess Session, p catalog.Product) []reply.Message {
	sess.State = StateConfirm
	w.sessions.Put(sess)

	text := msgSocialProof + "\n\n📋 Проверьте данные заказа:\n\n" +
		fmt.Sprintf("Товар: %s\nЦена: %s\nИмя: %s\nТелефон: %s\n", p.Name, p.PriceRub(), sess.FullName, sess.Phone)
	if p.RequiresAddress() {
		text += fmt.Sprintf("Адрес: %s\n", sess.Address)
	}
	if p.RequiresEmail() {
		text += fmt.Sprintf("Email: %s\n", sess.Email)
	}
	text += "\nВсё верно?"

	return []reply.Message{{
		ChatID: sess.ChatID,
		Text:   text,
		Keyboard: [][]reply.Button{{
			{Label: "✅ Подтвердить", Data: CallbackConfirm},
			{Label: "❌ Отменить", Data: CallbackCancel},
		}},
	}}
}

// Confirm runs the critical section. Order of operations is fixed:
//
//  1. create the payment at the provider
//  2. record the order in the pending registry
//  3. reserve one stock unit (tracked products)
//  4. save the order durably, with retries
//
// A stock failure rolls back the pending record; an order-save failure rolls
// back the stock reservation and raises an operator alert.
func (w *Workflow) Confirm(ctx context.Context, chatID int64) ([]reply.Message, error) {
	ctx, span := otel.Tracer("checkout").Start(ctx, "checkout.confirm",
		trace.WithAttributes(attribute.Int64("chat_id", chatID)))
	defer span.End()

	sess, ok := w.sessions.Get(chatID)
	if !ok || sess.State != StateConfirm {
		return []reply.Message{reply.Text(chatID, msgNoSession)}, nil
	}
	p, err := w.catalog.Get(sess.ProductID)
	if err != nil {
		w.sessions.Delete(chatID)
		return []reply.Message{reply.Text(chatID, msgNoSession)}, nil
	}

	description := w.catalog.PaymentDescription(p.ID, sess.Phone)
	metadata := map[string]string{
		"product_id": p.ID,
		"chat_id":    strconv.FormatInt(chatID, 10),
	}
	paymentID, payURL, err := w.gateway.CreatePayment(ctx, p.Price, description, metadata)
	if err != nil {
		span.RecordError(err)
		w.metrics.PaymentsFailed.Inc()
		// session stays in confirm state so the buyer can simply retry
		return []reply.Message{reply.Text(chatID, msgPaymentFailed)}, fmt.Errorf("create payment: %w", err)
	}
	w.metrics.PaymentsCreated.Inc()

	address := sess.Address
	if !p.RequiresAddress() {
		address = order.NoDelivery
	}
	po := &order.PendingOrder{
		PaymentID:   paymentID,
		UserID:      chatID,
		FullName:    sess.FullName,
		Phone:       sess.Phone,
		Address:     address,
		Email:       sess.Email,
		ProductID:   p.ID,
		ProductName: p.Name,
		Price:       p.Price,
		Status:      order.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	w.pending.Add(po)

	if p.TracksStock {
		remaining, derr := w.ledger.DecrementIfPositive(ctx)
		if errors.Is(derr, inventory.ErrOutOfStock) {
			w.pending.Remove(paymentID)
			w.metrics.OutOfStock.Inc()
			w.sessions.Delete(chatID)
			return w.waitlistOffer(chatID), nil
		}
		if derr != nil {
			span.RecordError(derr)
			w.pending.Remove(paymentID)
			return []reply.Message{reply.Text(chatID, msgCheckoutFailed)}, fmt.Errorf("reserve stock: %w", derr)
		}
		w.metrics.StockLevel.Set(float64(remaining))
		w.alertOnLowStock(ctx, remaining)
	}

	if err := w.retrier.Do(ctx, "orders.add", func(ctx context.Context) error {
		return w.store.AddOrder(ctx, po)
	}); err != nil {
		span.RecordError(err)
		if p.TracksStock {
			if restored, incErr := w.ledger.Increment(ctx, 1); incErr != nil {
				w.log.Error("stock_compensation_failed", zap.String("payment_id", paymentID), zap.Error(incErr))
			} else {
				w.metrics.StockLevel.Set(float64(restored))
			}
		}
		w.pending.Remove(paymentID)
		w.notifyAdmin(ctx, fmt.Sprintf(
			"🚨 Не удалось сохранить заказ после всех попыток.\nПлатёж: %s\nТелефон: %s\nТовар: %s",
			paymentID, sess.Phone, p.Name,
		))
		w.sessions.Delete(chatID)
		return []reply.Message{reply.Text(chatID, msgCheckoutFailed)}, fmt.Errorf("save order: %w", err)
	}

	w.metrics.OrdersCreated.Inc()
	w.sessions.Delete(chatID)
	w.log.Info("order_created",
		zap.String("payment_id", paymentID),
		zap.String("product_id", p.ID),
		zap.Int64("chat_id", chatID),
	)
	w.notifyAdmin(ctx, fmt.Sprintf(
		"🆕 Новый заказ (ожидает оплаты)\nТовар: %s\nИмя: %s\nТелефон: %s\nАдрес: %s",
		p.Name, sess.FullName, sess.Phone, address,
	))

	return []reply.Message{{
		ChatID: chatID,
		Text: fmt.Sprintf("Отлично! Осталось оплатить заказ — %s.\n"+
			"После оплаты пришлём подтверждение сюда.", p.PriceRub()),
		Keyboard: [][]reply.Button{{{Label: "💳 Оплатить", URL: payURL}}},
	}}, nil
}

// Cancel drops the dialog at any step.
func (w *Workflow) Cancel(chatID int64) []reply.Message {
	w.sessions.Delete(chatID)
	return []reply.Message{reply.Text(chatID, msgCanceled)}
}

// JoinWaitlist asks for the phone to record in the restock waitlist.
func (w *Workflow) JoinWaitlist(chatID int64) []reply.Message {
	w.sessions.Put(Session{ChatID: chatID, State: StateWaitlistPhone})
	return []reply.Message{reply.Text(chatID, msgAskPhone)}
}

func (w *Workflow) SkipWaitlist(chatID int64) []reply.Message {
	w.sessions.Delete(chatID)
	return []reply.Message{reply.Text(chatID, msgNoWaitlist)}
}

func (w *Workflow) handleWaitlistPhone(ctx context.Context, sess Session, text string) ([]reply.Message, error) {
	phone, err := w.validator.Phone(text)
	if err != nil {
		return []reply.Message{reply.Text(sess.ChatID, msgBadPhone)}, nil
	}

	entry := order.WaitlistEntry{Phone: phone, UserID: sess.ChatID, AddedAt: time.Now().UTC()}
	if err := w.retrier.Do(ctx, "waitlist.add", func(ctx context.Context) error {
		return w.store.AddToWaitlist(ctx, entry)
	}); err != nil {
		return []reply.Message{reply.Text(sess.ChatID, msgCheckoutFailed)}, fmt.Errorf("add to waitlist: %w", err)
	}

	w.sessions.Delete(sess.ChatID)
	w.log.Info("waitlist_joined", zap.Int64("chat_id", sess.ChatID))
	w.notifyAdmin(ctx, fmt.Sprintf("🔔 Новый номер в листе ожидания: %s", phone))
	return []reply.Message{reply.Text(sess.ChatID, msgWaitlisted)}, nil
}

func (w *Workflow) waitlistOffer(chatID int64) []reply.Message {
	return []reply.Message{{
		ChatID: chatID,
		Text:   msgOutOfStock,
		Keyboard: [][]reply.Button{{
			{Label: "🔔 Сообщить мне", Data: CallbackJoinWaitlist},
			{Label: "Не нужно", Data: CallbackSkipWaitlist},
		}},
	}}
}

func (w *Workflow) alertOnLowStock(ctx context.Context, remaining int) {
	switch w.thresholds.Classify(remaining) {
	case inventory.LevelCritical:
		w.notifyAdmin(ctx, fmt.Sprintf("🚨 Критический остаток: %d шт. Срочно пополните склад!", remaining))
	case inventory.LevelLow:
		w.notifyAdmin(ctx, fmt.Sprintf("⚠️ Мало товара: осталось %d шт.", remaining))
	}
}

func (w *Workflow) notifyAdmin(ctx context.Context, text string) {
	if err := w.notifier.NotifyAdmin(ctx, text); err != nil {
		w.log.Error("admin_notify_failed", zap.Error(err))
	}
}
