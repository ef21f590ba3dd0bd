package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/musicpricehub/backend/internal/auth"
	"github.com/musicpricehub/backend/internal/catalog"
	"github.com/musicpricehub/backend/internal/chat"
	"github.com/musicpricehub/backend/internal/scrape"
)

const testIssuer = "pricehub-auth"

var testSigningSecret = []byte("server-test-secret")

type fakeScrapeRunner struct {
	summary scrape.RunSummary
	err     error
	calls   []string
}

func (r *fakeScrapeRunner) Run(_ context.Context, store catalog.Store) (scrape.RunSummary, error) {
	r.calls = append(r.calls, store.ID)
	if r.err != nil {
		return scrape.RunSummary{}, r.err
	}
	summary := r.summary
	summary.StoreID = store.ID
	return summary, nil
}

type testEnv struct {
	handler  http.Handler
	db       *gorm.DB
	registry *chat.Registry
	chats    *chat.Service
	runner   *fakeScrapeRunner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	models := []interface{}{
		&catalog.Product{}, &catalog.Store{}, &catalog.StoreProduct{},
		&catalog.CurrentOffer{}, &catalog.PriceHistoryEntry{},
		&scrape.Task{}, &scrape.Result{},
		&chat.Conversation{}, &chat.Message{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	validator, err := auth.NewValidator(auth.ValidatorConfig{
		SigningSecret: testSigningSecret,
		Issuer:        testIssuer,
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}

	registry := chat.NewRegistry()
	chatService, err := chat.NewService(chat.ServiceConfig{
		Database:   db,
		Registry:   registry,
		IDProvider: catalog.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct chat service: %v", err)
	}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Database:   db,
		IDProvider: catalog.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct catalog service: %v", err)
	}

	ledger, err := scrape.NewLedger(scrape.LedgerConfig{
		Database:   db,
		IDProvider: catalog.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct ledger: %v", err)
	}

	runner := &fakeScrapeRunner{}
	handler, err := NewHTTPHandler(Dependencies{
		SessionValidator: validator,
		ChatService:      chatService,
		CatalogService:   catalogService,
		ScrapeRunner:     runner,
		Ledger:           ledger,
		Database:         db,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}

	return &testEnv{handler: handler, db: db, registry: registry, chats: chatService, runner: runner}
}

func issueSessionToken(t *testing.T, userID string) string {
	t.Helper()
	now := time.Now().UTC()
	claims := auth.SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    testIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSigningSecret)
	if err != nil {
		t.Fatalf("failed to sign session token: %v", err)
	}
	return signed
}

// waitFor polls the condition until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
