package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// Messenger sends one formatted message to one chat. The production
// implementation wraps the Telegram bot; tests substitute fakes.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// TelegramMessenger delivers through the Telegram Bot API. Messages are
// HTML-formatted and keep link previews on: the listing URL is the first
// line, so Telegram renders the offer photo.
type TelegramMessenger struct {
	bot *bot.Bot
}

func NewTelegramMessenger(b *bot.Bot) *TelegramMessenger {
	return &TelegramMessenger{bot: b}
}

func (m *TelegramMessenger) Send(ctx context.Context, chatID int64, text string) error {
	_, err := m.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	})
	return err
}

const (
	// maxSendAttempts bounds retries of transient failures per (listing, chat) pair.
	maxSendAttempts = 3
	// defaultBackoff is the base for exponential backoff and the fallback
	// pause when a rate-limit response carries no retry-after.
	defaultBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
)

// Notifier fans deliveries out to recipients. Sends to one chat are
// serialized (one worker per chat, paced by msgDelay) so per-chat rate
// limits hold; a rate limit or failure on one chat never blocks another.
type Notifier struct {
	messenger   Messenger
	store       Store
	recipients  []int64
	msgDelay    time.Duration
	baseBackoff time.Duration
	maxAttempts int
}

func NewNotifier(messenger Messenger, store Store, recipients []int64, msgDelay time.Duration) *Notifier {
	return &Notifier{
		messenger:   messenger,
		store:       store,
		recipients:  recipients,
		msgDelay:    msgDelay,
		baseBackoff: defaultBackoff,
		maxAttempts: maxSendAttempts,
	}
}

// BroadcastResult is what one Notifying stage hands back to the pipeline.
type BroadcastResult struct {
	// DeliveredKeys holds listing keys delivered to at least one recipient.
	DeliveredKeys map[string]bool
	// Abandoned counts (listing, chat) pairs dropped on permanent failure
	// or exhausted retries.
	Abandoned int
}

type recipientOutcome struct {
	delivered []string
	abandoned int
	err       error
}

// Broadcast delivers every listing to every recipient that has not received
// it yet, marking each success in the store. It returns an error only for
// store failures or an expired run context; delivery failures are counted,
// not raised.
func (n *Notifier) Broadcast(ctx context.Context, listings []Listing) (BroadcastResult, error) {
	outcomes := make([]recipientOutcome, len(n.recipients))

	var wg sync.WaitGroup
	for i, chatID := range n.recipients {
		wg.Add(1)
		go func(i int, chatID int64) {
			defer wg.Done()
			outcomes[i] = n.deliverAll(ctx, chatID, listings)
		}(i, chatID)
	}
	wg.Wait()

	result := BroadcastResult{DeliveredKeys: make(map[string]bool)}
	var firstErr error
	for _, out := range outcomes {
		for _, key := range out.delivered {
			result.DeliveredKeys[key] = true
		}
		result.Abandoned += out.abandoned
		if out.err != nil && firstErr == nil {
			firstErr = out.err
		}
	}
	return result, firstErr
}

// deliverAll walks the listing batch for one chat, in order, one
// outstanding send at a time.
func (n *Notifier) deliverAll(ctx context.Context, chatID int64, listings []Listing) recipientOutcome {
	var out recipientOutcome
	var lastSend time.Time

	for _, listing := range listings {
		done, err := n.store.HasDelivered(listing.Key, chatID)
		if err != nil {
			out.err = err
			return out
		}
		if done {
			continue
		}

		if !lastSend.IsZero() {
			if wait := n.msgDelay - time.Since(lastSend); wait > 0 {
				if err := sleepCtx(ctx, wait); err != nil {
					out.err = err
					return out
				}
			}
		}

		err = n.deliverOne(ctx, chatID, FormatListing(listing))
		switch {
		case err == nil:
			lastSend = time.Now()
			if err := n.store.MarkDelivered(listing.Key, chatID); err != nil {
				out.err = err
				return out
			}
			out.delivered = append(out.delivered, listing.Key)
			slog.Info("Delivered listing", "key", listing.Key, "chat_id", chatID)
		case ctx.Err() != nil:
			out.err = ctx.Err()
			return out
		default:
			out.abandoned++
			slog.Error("Abandoning delivery", "key", listing.Key, "chat_id", chatID, "error", err)
		}
	}
	return out
}

// deliverOne sends one message, absorbing rate limits and retrying
// transient failures. Rate-limit waits do not consume retry attempts; the
// run context bounds them instead.
func (n *Notifier) deliverOne(ctx context.Context, chatID int64, text string) error {
	attempts := 0
	for {
		err := n.messenger.Send(ctx, chatID, text)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		var tooMany *bot.TooManyRequestsError
		switch {
		case errors.As(err, &tooMany):
			wait := time.Duration(tooMany.RetryAfter) * time.Second
			if wait <= 0 {
				wait = n.baseBackoff
			}
			slog.Warn("Rate limited, pausing chat", "chat_id", chatID, "retry_after", wait)
			if serr := sleepCtx(ctx, wait); serr != nil {
				return err
			}
		case isPermanentSendError(err):
			return fmt.Errorf("permanent delivery failure: %w", err)
		default:
			attempts++
			if attempts >= n.maxAttempts {
				return fmt.Errorf("transient delivery failure after %d attempts: %w", attempts, err)
			}
			backoff := n.baseBackoff << attempts
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			slog.Warn("Transient delivery failure, backing off",
				"chat_id", chatID, "attempt", attempts, "backoff", backoff, "error", err)
			if serr := sleepCtx(ctx, backoff); serr != nil {
				return err
			}
		}
	}
}

// BroadcastText sends one free-form message (the run summary) to every
// recipient, without touching the dedup store.
func (n *Notifier) BroadcastText(ctx context.Context, text string) {
	var wg sync.WaitGroup
	for _, chatID := range n.recipients {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			if err := n.deliverOne(ctx, chatID, text); err != nil {
				slog.Error("Failed to deliver summary", "chat_id", chatID, "error", err)
			}
		}(chatID)
	}
	wg.Wait()
}

// isPermanentSendError reports 4xx-class responses that no retry can fix:
// a revoked token, a chat the bot was kicked from, malformed markup.
func isPermanentSendError(err error) bool {
	return errors.Is(err, bot.ErrorForbidden) ||
		errors.Is(err, bot.ErrorBadRequest) ||
		errors.Is(err, bot.ErrorUnauthorized) ||
		errors.Is(err, bot.ErrorNotFound)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
