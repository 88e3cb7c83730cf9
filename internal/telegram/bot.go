package telegram

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"weekly-planner/internal/config"
	"weekly-planner/internal/metrics"
	"weekly-planner/internal/planner"
	"weekly-planner/internal/shared"
	"weekly-planner/internal/shopping"
)

// API is the part of the Telegram client the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Randomizer proposes recipes for a household.
type Randomizer interface {
	Randomize(ctx context.Context, req planner.RandomizeRequest) (*planner.RandomizeResult, error)
}

// ShoppingList is the subset of shopping operations exposed through chat.
type ShoppingList interface {
	List(ctx context.Context, scope shopping.Scope) (*shopping.List, error)
	Append(ctx context.Context, req shopping.AppendRequest) (int64, error)
	SetPurchased(ctx context.Context, req shopping.PurchaseRequest) error
}

// UsageReader reads the persisted operation metrics.
type UsageReader interface {
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

// Deps are the services the bot talks to.
type Deps struct {
	Planner   Randomizer
	Shopping  ShoppingList
	Usage     UsageReader
	PoolStats func() sql.DBStats
	// DataPath is measured for the admin report; empty when the store is remote.
	DataPath string
}

// Bot answers chat commands for a single household.
type Bot struct {
	api         API
	deps        Deps
	householdID int64
	allowed     []int64
	adminID     int64
	now         func() time.Time
	inflight    sync.WaitGroup
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	slog.Info("authorized on telegram", "account", api.Self.UserName)

	if cfg.TelegramWebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
		}
		resp, err := api.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		slog.Info("webhook set", "description", resp.Description)
	}

	return newBot(api, cfg, deps), nil
}

func newBot(api API, cfg *config.Config, deps Deps) *Bot {
	return &Bot{
		api:         api,
		deps:        deps,
		householdID: cfg.TelegramHouseholdID,
		allowed:     cfg.TelegramAllowedUserIDs,
		adminID:     cfg.AdminTelegramID,
		now:         time.Now,
	}
}

// RegisterHandlers registers the webhook and health handlers on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook", b.handleWebhook)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// Wait blocks until every message being processed has been answered.
func (b *Bot) Wait() {
	b.inflight.Wait()
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		slog.Warn("error parsing update", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !slices.Contains(b.allowed, msg.From.ID) {
		slog.Warn("unauthorized telegram access attempt", "user_id", msg.From.ID, "username", msg.From.UserName)
		return
	}

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.processMessage(msg)
	}()
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := tgbotapi.NewMessage(msg.Chat.ID, b.reply(ctx, msg))
	out.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(out); err != nil {
		slog.Error("failed to send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

// reply runs the command in msg and returns the Markdown answer.
func (b *Bot) reply(ctx context.Context, msg *tgbotapi.Message) string {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "randomize":
		return b.randomize(ctx, args)
	case "list":
		return b.list(ctx)
	case "add":
		return b.add(ctx, args)
	case "done":
		return b.markPurchased(ctx, "done", args, true)
	case "undo":
		return b.markPurchased(ctx, "undo", args, false)
	case "metrics":
		if msg.From == nil || msg.From.ID != b.adminID {
			return "⛔ *Access Denied*: Admin only."
		}
		return b.metricsReport(ctx)
	default:
		return helpText
	}
}

const helpText = "🧑‍🍳 *Weekly Planner*\n\n" +
	"/randomize `[n]` pick recipes for next week\n" +
	"/list show this week's shopping list\n" +
	"/add `name` add an item\n" +
	"/done `id` mark an item as purchased\n" +
	"/undo `id` mark an item as not purchased"

func (b *Bot) randomize(ctx context.Context, args string) string {
	year, week := planner.NextWeek(b.now())
	res, err := b.deps.Planner.Randomize(ctx, planner.RandomizeRequest{
		HouseholdID: b.householdID,
		Count:       planner.ParseCount(args, planner.DefaultCount),
		Week:        week,
		Year:        year,
	})
	if err != nil {
		return errorText("Error picking recipes", err)
	}
	return formatRecipesMarkdown(res, year, week)
}

func (b *Bot) list(ctx context.Context) string {
	year, week := planner.CurrentWeek(b.now())
	l, err := b.deps.Shopping.List(ctx, shopping.Scope{HouseholdID: b.householdID, Week: week, Year: year})
	if err != nil {
		return errorText("Error loading list", err)
	}
	return formatListMarkdown(l, year, week)
}

func (b *Bot) add(ctx context.Context, name string) string {
	year, week := planner.CurrentWeek(b.now())
	id, err := b.deps.Shopping.Append(ctx, shopping.AppendRequest{
		HouseholdID: b.householdID,
		Week:        week,
		Year:        year,
		Name:        name,
	})
	if err != nil {
		return errorText("Error adding item", err)
	}
	return fmt.Sprintf("✅ Added *%s* (#%d)", escape(strings.TrimSpace(name)), id)
}

func (b *Bot) markPurchased(ctx context.Context, command, args string, purchased bool) string {
	id, err := strconv.ParseInt(strings.TrimPrefix(args, "#"), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Sprintf("❌ Usage: /%s `id`", command)
	}
	year, week := planner.CurrentWeek(b.now())
	err = b.deps.Shopping.SetPurchased(ctx, shopping.PurchaseRequest{
		HouseholdID: b.householdID,
		ID:          id,
		Week:        week,
		Year:        year,
		Purchased:   purchased,
	})
	if err != nil {
		return errorText("Error updating item", err)
	}
	if purchased {
		return fmt.Sprintf("🛒 Item #%d purchased", id)
	}
	return fmt.Sprintf("↩️ Item #%d back on the list", id)
}

func (b *Bot) metricsReport(ctx context.Context) string {
	usage, err := b.deps.Usage.GetDailyUsage(ctx, 7)
	if err != nil {
		slog.Error("failed to read usage", "error", err)
		return "❌ Error fetching metrics."
	}
	var pool sql.DBStats
	if b.deps.PoolStats != nil {
		pool = b.deps.PoolStats()
	}
	return formatMetricsMarkdown(usage, metrics.GetSysHealth(b.deps.DataPath, pool))
}

// errorText renders err for chat. Only the caller-safe message of a core error
// is shown.
func errorText(title string, err error) string {
	msg := "internal error"
	if e, ok := shared.As(err); ok {
		msg = e.Message
	}
	if k := shared.KindOf(err); k == shared.KindStore || k == shared.KindInternal {
		slog.Error(title, "error", err)
	}
	return fmt.Sprintf("❌ *%s:* %s", title, escape(msg))
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func formatRecipesMarkdown(res *planner.RandomizeResult, year, week int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *Recipes for %d-W%02d*\n\n", year, week))
	if len(res.Recipes) == 0 {
		sb.WriteString("_No compatible recipes found_\n")
	}
	for i, r := range res.Recipes {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, escape(r.Summary())))
	}
	sb.WriteString(fmt.Sprintf("\n_%d recipes available_", res.TotalAvailable))
	return sb.String()
}

func formatListMarkdown(l *shopping.List, year, week int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🛒 *Shopping List %d-W%02d*\n", year, week))
	writeBucket(&sb, "🥬 *Fresh*", l.Fresh)
	writeBucket(&sb, "🥫 *Pantry*", l.Pantry)
	return sb.String()
}

func writeBucket(sb *strings.Builder, title string, items []shopping.Item) {
	sb.WriteString("\n" + title + "\n")
	if len(items) == 0 {
		sb.WriteString("_empty_\n")
		return
	}
	for _, it := range items {
		mark := "•"
		if it.Purchased {
			mark = "✔️"
		}
		sb.WriteString(fmt.Sprintf("%s %s `#%d`", mark, escape(it.Name), it.ID))
		if it.Cost != nil {
			sb.WriteString(fmt.Sprintf(" $%.2f", *it.Cost))
		}
		sb.WriteString("\n")
	}
}

func formatMetricsMarkdown(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d ops (%d failed, avg %dms)\n", d.Date, d.Operations, d.Failures, d.AvgLatencyMS))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))
	sb.WriteString(fmt.Sprintf("• DB Pool: %d open, %d in use, %d idle, %d waits\n",
		health.OpenConns, health.InUseConns, health.IdleConns, health.WaitCount))
	return sb.String()
}
