package telegram

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"shared-basket/internal/app"
	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
	"shared-basket/internal/config"
	"shared-basket/internal/logger"
	"shared-basket/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Basket is the part of the controller the chat front-end drives.
type Basket interface {
	View() app.View
	AddItem(ctx context.Context, req app.NewItem) (app.AddOutcome, error)
	ResolveConflict(ctx context.Context, choice app.Resolution) (*basket.Item, error)
	UpdateItem(ctx context.Context, id string, patch basket.Patch) (basket.Item, error)
	ClearList(ctx context.Context)
	Undo(ctx context.Context) bool
	SetMode(ctx context.Context, mode basket.Mode, store *catalog.Store) error
	ShareLink() (string, error)
	ImportURL(ctx context.Context, pageURL string) (app.ImportResult, error)
}

// UsageReporter backs the admin /metrics command.
type UsageReporter interface {
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

const (
	callbackPrefix = "conflict|"
	requestTimeout = time.Minute
)

// Bot wraps the Telegram API around the shopping list.
type Bot struct {
	api         *tgbotapi.BotAPI
	basket      Basket
	usage       UsageReporter
	allowUserID int64
	dataPath    string
	log         *logger.Logger
}

// reply is what the bot answers with; Keyboard is optional.
type reply struct {
	Text     string
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, b Basket, usage UsageReporter, log *logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	ctx := log.WithField(context.Background(), "account", api.Self.UserName)
	log.Info(ctx, "telegram.authorized")

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	if _, err := api.Request(wh); err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}

	return &Bot{
		api:         api,
		basket:      b,
		usage:       usage,
		allowUserID: cfg.TelegramAllowUserID,
		dataPath:    cfg.StateDir,
		log:         log,
	}, nil
}

// ServeHTTP handles webhook deliveries.
func (b *Bot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.log.Warn(r.Context(), "telegram.bad_update", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	switch {
	case update.CallbackQuery != nil:
		if !b.allowed(update.CallbackQuery.From) {
			return
		}
		go b.processCallback(update.CallbackQuery)
	case update.Message != nil:
		if !b.allowed(update.Message.From) {
			return
		}
		go b.processMessage(update.Message)
	}
}

func (b *Bot) allowed(from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	if b.allowUserID != 0 && from.ID != b.allowUserID {
		ctx := b.log.WithFields(context.Background(), map[string]any{"user_id": from.ID, "username": from.UserName})
		b.log.Warn(ctx, "telegram.unauthorized", nil)
		return false
	}
	return true
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	ctx = b.log.WithField(ctx, "chat_id", msg.Chat.ID)

	var out reply
	if msg.IsCommand() && msg.Command() == "metrics" {
		out = b.metricsReply(ctx, msg.From.ID)
	} else {
		out = b.handleText(ctx, msg)
	}

	m := tgbotapi.NewMessage(msg.Chat.ID, out.Text)
	m.ParseMode = tgbotapi.ModeMarkdown
	if out.Keyboard != nil {
		m.ReplyMarkup = out.Keyboard
	}
	if _, err := b.api.Send(m); err != nil {
		b.log.Warn(ctx, "telegram.send_failed", err)
	}
}

func (b *Bot) processCallback(query *tgbotapi.CallbackQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	// Answer callback to remove spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.log.Warn(ctx, "telegram.callback_ack_failed", err)
	}
	if query.Message == nil {
		return
	}

	out := b.handleCallback(ctx, query.Data)
	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, out.Text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		b.log.Warn(ctx, "telegram.send_failed", err)
	}
}

// handleText dispatches a chat message: commands, a page URL to import, or
// one item per line.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) reply {
	if msg.IsCommand() {
		return b.handleCommand(ctx, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		return b.importReply(ctx, text)
	}
	return b.addItems(ctx, text)
}

func (b *Bot) handleCommand(ctx context.Context, command, args string) reply {
	switch command {
	case "start", "help":
		return reply{Text: helpText}
	case "list":
		return reply{Text: formatList(b.basket.View())}
	case "total":
		return reply{Text: formatTotals(b.basket.View())}
	case "undo":
		if !b.basket.Undo(ctx) {
			return reply{Text: "Nothing to undo."}
		}
		return reply{Text: "↩️ Undone.\n\n" + formatList(b.basket.View())}
	case "clear":
		b.basket.ClearList(ctx)
		return reply{Text: "🧹 List cleared. Use /undo to bring it back."}
	case "share":
		link, err := b.basket.ShareLink()
		if err != nil {
			return errorReply("Cannot share the list", err)
		}
		return reply{Text: "🔗 Open this link on another device:\n" + escape(link)}
	case "mode":
		return b.modeReply(ctx, args)
	case "bought":
		return b.toggleBought(ctx, args)
	}
	return reply{Text: "Unknown command. Try /help."}
}

var trailingQuantity = regexp.MustCompile(`^(.+?)\s+(\d+(?:\.\d+)?)$`)

// parseLine reads "name [quantity]".
func parseLine(line string) app.NewItem {
	req := app.NewItem{Name: strings.TrimSpace(line), Quantity: 1}
	if m := trailingQuantity.FindStringSubmatch(req.Name); m != nil {
		if q, err := strconv.ParseFloat(m[2], 64); err == nil {
			req.Name, req.Quantity = m[1], q
		}
	}
	return req
}

func (b *Bot) addItems(ctx context.Context, text string) reply {
	var added []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out, err := b.basket.AddItem(ctx, parseLine(line))
		if err != nil {
			return errorReply(fmt.Sprintf("Could not add %q", strings.TrimSpace(line)), err)
		}
		if out.Conflict != nil {
			// Lines after the duplicate are dropped until it is resolved.
			prefix := ""
			if len(added) > 0 {
				prefix = "✅ Added " + strings.Join(added, ", ") + "\n\n"
			}
			return conflictReply(prefix, out.Conflict)
		}
		added = append(added, out.Item.Emoji+" "+escape(out.Item.Name))
	}
	if len(added) == 0 {
		return reply{Text: helpText}
	}
	return reply{Text: "✅ Added " + strings.Join(added, ", ") + "\n_Prices are on the way._"}
}

func conflictReply(prefix string, c *app.Conflict) reply {
	text := fmt.Sprintf("%s⚠️ *%s* is already on the list (%s %s).\nWhat would you like to do?",
		prefix, escape(c.Existing.Name), formatQuantity(c.Existing.Quantity), escape(c.Existing.Unit))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Add to quantity", callbackPrefix+string(app.ResolveUpdate)),
			tgbotapi.NewInlineKeyboardButtonData("🆕 Separate line", callbackPrefix+string(app.ResolveAdd)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", callbackPrefix+string(app.ResolveCancel)),
		),
	)
	return reply{Text: text, Keyboard: &keyboard}
}

func (b *Bot) handleCallback(ctx context.Context, data string) reply {
	choice, ok := strings.CutPrefix(data, callbackPrefix)
	if !ok {
		return reply{Text: "This button has expired."}
	}

	item, err := b.basket.ResolveConflict(ctx, app.Resolution(choice))
	if err != nil {
		return errorReply("Could not resolve the duplicate", err)
	}
	switch {
	case item == nil:
		return reply{Text: "✖️ Nothing added."}
	case app.Resolution(choice) == app.ResolveUpdate:
		return reply{Text: fmt.Sprintf("➕ %s %s is now %s %s.", item.Emoji, escape(item.Name), formatQuantity(item.Quantity), escape(item.Unit))}
	default:
		return reply{Text: fmt.Sprintf("✅ Added %s %s as a separate line.", item.Emoji, escape(item.Name))}
	}
}

func (b *Bot) modeReply(ctx context.Context, args string) reply {
	if args == "" || strings.EqualFold(args, "cheapest") {
		if err := b.basket.SetMode(ctx, basket.ModeCheapest, nil); err != nil {
			return errorReply("Could not switch mode", err)
		}
		return reply{Text: formatTotals(b.basket.View())}
	}

	store := catalog.Store(args)
	if err := b.basket.SetMode(ctx, basket.ModeSingleStore, &store); err != nil {
		names := make([]string, len(catalog.Stores))
		for i, s := range catalog.Stores {
			names[i] = string(s)
		}
		return reply{Text: "Usage: /mode cheapest | /mode <store>\nStores: " + strings.Join(names, ", ")}
	}
	return reply{Text: formatTotals(b.basket.View())}
}

// toggleBought flips the bought flag of the n-th item as numbered by /list.
func (b *Bot) toggleBought(ctx context.Context, args string) reply {
	n, err := strconv.Atoi(args)
	items := b.basket.View().Items
	if err != nil || n < 1 || n > len(items) {
		return reply{Text: fmt.Sprintf("Usage: /bought N (1-%d)", len(items))}
	}

	it := items[n-1]
	bought := !it.IsBought
	if _, err := b.basket.UpdateItem(ctx, it.ID, basket.Patch{IsBought: &bought}); err != nil {
		return errorReply("Could not update the item", err)
	}
	return reply{Text: formatList(b.basket.View())}
}

func (b *Bot) importReply(ctx context.Context, pageURL string) reply {
	res, err := b.basket.ImportURL(ctx, pageURL)
	if err != nil {
		return errorReply("Import failed", err)
	}
	return reply{Text: fmt.Sprintf("📥 Imported: %d new, %d merged.\n\n%s", len(res.Added), len(res.Merged), formatList(b.basket.View()))}
}

func (b *Bot) metricsReply(ctx context.Context, userID int64) reply {
	if b.allowUserID == 0 || userID != b.allowUserID {
		return reply{Text: "⛔ *Access Denied*: Admin only."}
	}
	if b.usage == nil {
		return reply{Text: "❌ Metrics are not enabled."}
	}
	usage, err := b.usage.GetDailyUsage(ctx, 7)
	if err != nil {
		b.log.Warn(ctx, "telegram.metrics_failed", err)
		return reply{Text: "❌ Error fetching metrics."}
	}
	return reply{Text: formatMetrics(usage, metrics.ReadHealth(b.dataPath))}
}

const helpText = "🛒 *Shared basket*\n\n" +
	"Send item names, one per line, optionally followed by a quantity (`חלב 2`).\n" +
	"Send a recipe URL to import its groceries.\n\n" +
	"/list - show the list\n" +
	"/total - cost per store\n" +
	"/bought N - mark item N as bought\n" +
	"/mode cheapest | /mode <store>\n" +
	"/undo - revert the last change\n" +
	"/clear - empty the list\n" +
	"/share - link for another device"
