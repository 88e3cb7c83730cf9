package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"weekly-planner/internal/config"
	"weekly-planner/internal/metrics"
	"weekly-planner/internal/planner"
	"weekly-planner/internal/recipe"
	"weekly-planner/internal/shared"
	"weekly-planner/internal/shopping"
)

type fakeAPI struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) HandleUpdate(r *http.Request) (*tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

type fakePlanner struct {
	got planner.RandomizeRequest
	res *planner.RandomizeResult
	err error
}

func (f *fakePlanner) Randomize(_ context.Context, req planner.RandomizeRequest) (*planner.RandomizeResult, error) {
	f.got = req
	return f.res, f.err
}

type fakeShopping struct {
	list      *shopping.List
	appended  []shopping.AppendRequest
	purchased []shopping.PurchaseRequest
	err       error
}

func (f *fakeShopping) List(_ context.Context, _ shopping.Scope) (*shopping.List, error) {
	return f.list, f.err
}

func (f *fakeShopping) Append(_ context.Context, req shopping.AppendRequest) (int64, error) {
	f.appended = append(f.appended, req)
	return 7, f.err
}

func (f *fakeShopping) SetPurchased(_ context.Context, req shopping.PurchaseRequest) error {
	f.purchased = append(f.purchased, req)
	return f.err
}

type fakeUsage struct {
	usage []metrics.DailyUsage
}

func (f *fakeUsage) GetDailyUsage(_ context.Context, _ int) ([]metrics.DailyUsage, error) {
	return f.usage, nil
}

const (
	userID  = 42
	adminID = 99
)

func newTestBot(api API, deps Deps) *Bot {
	cfg := &config.Config{
		TelegramAllowedUserIDs: []int64{userID, adminID},
		TelegramHouseholdID:    5,
		AdminTelegramID:        adminID,
	}
	b := newBot(api, cfg, deps)
	// Wednesday of 2025-W10
	b.now = func() time.Time { return time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC) }
	return b
}

func command(text string, from int64) *tgbotapi.Message {
	name := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 1},
		From:     &tgbotapi.User{ID: from},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func TestRandomizeCommand(t *testing.T) {
	p := &fakePlanner{res: &planner.RandomizeResult{
		Recipes: []recipe.Recipe{
			{ID: "r1", Title: "Tacos", Ingredients: []string{"beef", "corn"}},
			{ID: "r2", Title: "Salad", Ingredients: []string{"lettuce"}},
		},
		TotalAvailable: 4,
	}}
	b := newTestBot(&fakeAPI{}, Deps{Planner: p})

	out := b.reply(context.Background(), command("/randomize 2", userID))

	if p.got.HouseholdID != 5 || p.got.Count != 2 {
		t.Errorf("Unexpected request %+v", p.got)
	}
	if p.got.Year != 2025 || p.got.Week != 11 {
		t.Errorf("Expected next week 2025-W11, got %d-W%02d", p.got.Year, p.got.Week)
	}
	if !strings.Contains(out, "📅 *Recipes for 2025-W11*") {
		t.Error("Missing recipes header")
	}
	if !strings.Contains(out, "1. Tacos (beef, corn)") {
		t.Errorf("Missing first recipe in %q", out)
	}
	if !strings.Contains(out, "_4 recipes available_") {
		t.Error("Missing total available")
	}
}

func TestRandomizeCommandDefaultsCount(t *testing.T) {
	p := &fakePlanner{res: &planner.RandomizeResult{Recipes: []recipe.Recipe{}}}
	b := newTestBot(&fakeAPI{}, Deps{Planner: p})

	out := b.reply(context.Background(), command("/randomize lots", userID))

	if p.got.Count != planner.DefaultCount {
		t.Errorf("Expected default count, got %d", p.got.Count)
	}
	if !strings.Contains(out, "_No compatible recipes found_") {
		t.Error("Missing empty selection notice")
	}
}

func TestRandomizeCommandShowsCatalogError(t *testing.T) {
	p := &fakePlanner{err: shared.CatalogUnavailable("catalog_error", "failed to fetch recipes", errors.New("timeout"))}
	b := newTestBot(&fakeAPI{}, Deps{Planner: p})

	out := b.reply(context.Background(), command("/randomize", userID))

	if !strings.Contains(out, "failed to fetch recipes") {
		t.Errorf("Expected caller-safe message, got %q", out)
	}
	if strings.Contains(out, "timeout") {
		t.Error("Cause must not leak into chat")
	}
}

func TestListCommand(t *testing.T) {
	cost := 2.5
	s := &fakeShopping{list: &shopping.List{
		Fresh:  []shopping.Item{{ID: 1, Name: "Carrots", Cost: &cost}, {ID: 2, Name: "Leek", Purchased: true}},
		Pantry: []shopping.Item{},
	}}
	b := newTestBot(&fakeAPI{}, Deps{Shopping: s})

	out := b.reply(context.Background(), command("/list", userID))

	if !strings.Contains(out, "🛒 *Shopping List 2025-W10*") {
		t.Error("Missing list header for the current week")
	}
	if !strings.Contains(out, "• Carrots `#1` $2.50") {
		t.Errorf("Missing fresh item in %q", out)
	}
	if !strings.Contains(out, "✔️ Leek `#2`") {
		t.Error("Missing purchased mark")
	}
	if !strings.Contains(out, "🥫 *Pantry*\n_empty_") {
		t.Error("Missing empty pantry marker")
	}
}

func TestAddCommand(t *testing.T) {
	s := &fakeShopping{}
	b := newTestBot(&fakeAPI{}, Deps{Shopping: s})

	out := b.reply(context.Background(), command("/add olive_oil", userID))

	if len(s.appended) != 1 {
		t.Fatalf("Expected one append, got %d", len(s.appended))
	}
	req := s.appended[0]
	if req.Name != "olive_oil" || req.Week != 10 || req.Year != 2025 || req.HouseholdID != 5 {
		t.Errorf("Unexpected append %+v", req)
	}
	if req.Bucket != nil {
		t.Error("Bucket should be left to the service")
	}
	if !strings.Contains(out, `olive\_oil`) || !strings.Contains(out, "#7") {
		t.Errorf("Expected escaped name and id, got %q", out)
	}
}

func TestAddCommandShowsValidationError(t *testing.T) {
	s := &fakeShopping{err: shared.Validation("invalid_name", "name must not be empty")}
	b := newTestBot(&fakeAPI{}, Deps{Shopping: s})

	out := b.reply(context.Background(), command("/add", userID))

	if !strings.Contains(out, "name must not be empty") {
		t.Errorf("Expected validation message, got %q", out)
	}
}

func TestDoneCommand(t *testing.T) {
	s := &fakeShopping{}
	b := newTestBot(&fakeAPI{}, Deps{Shopping: s})

	out := b.reply(context.Background(), command("/done #3", userID))
	if len(s.purchased) != 1 || s.purchased[0].ID != 3 || !s.purchased[0].Purchased {
		t.Fatalf("Unexpected purchase requests %+v", s.purchased)
	}
	if !strings.Contains(out, "Item #3 purchased") {
		t.Errorf("Unexpected reply %q", out)
	}

	out = b.reply(context.Background(), command("/undo 3", userID))
	if len(s.purchased) != 2 || s.purchased[1].Purchased {
		t.Fatalf("Expected an unpurchase request, got %+v", s.purchased)
	}
	if !strings.Contains(out, "back on the list") {
		t.Errorf("Unexpected reply %q", out)
	}

	out = b.reply(context.Background(), command("/done abc", userID))
	if !strings.Contains(out, "Usage: /done") {
		t.Errorf("Expected usage hint, got %q", out)
	}
	if len(s.purchased) != 2 {
		t.Error("Invalid id must not reach the service")
	}
}

func TestMetricsCommandIsAdminOnly(t *testing.T) {
	u := &fakeUsage{usage: []metrics.DailyUsage{{Date: "2025-03-05", Operations: 12, Failures: 1, AvgLatencyMS: 4}}}
	b := newTestBot(&fakeAPI{}, Deps{Usage: u})

	out := b.reply(context.Background(), command("/metrics", userID))
	if !strings.Contains(out, "Access Denied") {
		t.Error("Expected non-admin to be denied")
	}

	out = b.reply(context.Background(), command("/metrics", adminID))
	if !strings.Contains(out, "📊 *Usage & Health Report*") {
		t.Error("Missing report header")
	}
	if !strings.Contains(out, "• *2025-03-05*: 12 ops (1 failed, avg 4ms)") {
		t.Errorf("Missing usage line in %q", out)
	}
	if !strings.Contains(out, "• Disk Data: n/a") {
		t.Error("Expected n/a disk size without a data path")
	}
}

func TestUnknownCommandShowsHelp(t *testing.T) {
	b := newTestBot(&fakeAPI{}, Deps{})

	out := b.reply(context.Background(), &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 1}})
	if out != helpText {
		t.Errorf("Expected help text, got %q", out)
	}
}

func TestWebhook(t *testing.T) {
	api := &fakeAPI{}
	s := &fakeShopping{list: &shopping.List{Fresh: []shopping.Item{}, Pantry: []shopping.Item{}}}
	b := newTestBot(api, Deps{Shopping: s})
	mux := http.NewServeMux()
	b.RegisterHandlers(mux)

	post := func(from int64) int {
		body := `{"update_id":1,"message":{"message_id":1,"text":"/list","chat":{"id":5,"type":"private"},` +
			`"from":{"id":` + strconv.FormatInt(from, 10) + `},"entities":[{"type":"bot_command","offset":0,"length":5}]}}`
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
		return rec.Code
	}

	if code := post(1234); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	b.Wait()
	if len(api.sent) != 0 {
		t.Fatal("Unauthorized users must not get a reply")
	}

	if code := post(userID); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	b.Wait()
	if len(api.sent) != 1 {
		t.Fatalf("Expected one reply, got %d", len(api.sent))
	}
	if api.sent[0].ChatID != 5 || api.sent[0].ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("Unexpected reply config %+v", api.sent[0])
	}
	if !strings.Contains(api.sent[0].Text, "Shopping List") {
		t.Errorf("Unexpected reply text %q", api.sent[0].Text)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed update, got %d", rec.Code)
	}
}
