package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/musicpricehub/backend/internal/auth"
	"github.com/musicpricehub/backend/internal/catalog"
	"github.com/musicpricehub/backend/internal/chat"
	"github.com/musicpricehub/backend/internal/scrape"
)

const userIDContextKey = "pricehub_user_id"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingChatService      = errors.New("chat service dependency required")
	errMissingCatalogService   = errors.New("catalog service dependency required")
	errMissingScrapeRunner     = errors.New("scrape runner dependency required")
	errMissingLedger           = errors.New("scrape ledger dependency required")
	errMissingDatabase         = errors.New("database dependency required")
	errInvalidAuthorization    = errors.New("authorization token missing or invalid")
)

// SessionValidator validates externally issued session tokens.
type SessionValidator interface {
	ValidateToken(token string) (auth.SessionClaims, error)
}

// ScrapeRunner executes one scrape pass over a store's active products.
type ScrapeRunner interface {
	Run(ctx context.Context, store catalog.Store) (scrape.RunSummary, error)
}

// Dependencies wires the core services into the HTTP surface.
type Dependencies struct {
	SessionValidator SessionValidator
	ChatService      *chat.Service
	CatalogService   *catalog.Service
	ScrapeRunner     ScrapeRunner
	Ledger           *scrape.Ledger
	Database         *gorm.DB
	Logger           *zap.Logger
}

// NewHTTPHandler builds the gin handler exposing the chat sockets, the
// scrape trigger and the read-side audit endpoints.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.ChatService == nil {
		return nil, errMissingChatService
	}
	if deps.CatalogService == nil {
		return nil, errMissingCatalogService
	}
	if deps.ScrapeRunner == nil {
		return nil, errMissingScrapeRunner
	}
	if deps.Ledger == nil {
		return nil, errMissingLedger
	}
	if deps.Database == nil {
		return nil, errMissingDatabase
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		validator: deps.SessionValidator,
		chats:     deps.ChatService,
		catalog:   deps.CatalogService,
		scraper:   deps.ScrapeRunner,
		ledger:    deps.Ledger,
		db:        deps.Database,
		logger:    logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/api/chat/ws/:conversation_id", handler.handleChatSocket)
	protected.GET("/api/notifications/ws", handler.handleNotificationSocket)
	protected.POST("/api/chat/conversations", handler.handleResolveConversation)
	protected.GET("/api/chat/conversations/:conversation_id/messages", handler.handleListMessages)
	protected.POST("/api/scrape/stores/:store_id/run", handler.handleScrapeRun)
	protected.GET("/api/scrape/tasks", handler.handleListTasks)
	protected.GET("/api/scrape/tasks/:task_id/results", handler.handleTaskResults)
	protected.GET("/api/products/:product_id/offers", handler.handleListOffers)
	protected.GET("/api/store-products/:store_product_id/history", handler.handlePriceHistory)

	return router, nil
}

type httpHandler struct {
	validator SessionValidator
	chats     *chat.Service
	catalog   *catalog.Service
	scraper   ScrapeRunner
	ledger    *scrape.Ledger
	db        *gorm.DB
	logger    *zap.Logger
}

// authorizeRequest accepts a bearer header or, for websocket upgrades where
// browsers cannot set headers, a "token" query parameter.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := ""
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if token == "" {
		token = strings.TrimSpace(c.Query("token"))
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.UserIdentifier())
	c.Next()
}

type resolveConversationPayload struct {
	PeerID    string `json:"peer_id"`
	ListingID string `json:"listing_id"`
}

func (h *httpHandler) handleResolveConversation(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request resolveConversationPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.PeerID) == "" || strings.TrimSpace(request.ListingID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	conversation, err := h.chats.ResolveConversation(c.Request.Context(), userID, request.PeerID, request.ListingID)
	if err != nil {
		if errors.Is(err, chat.ErrSameParticipant) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		h.logger.Error("failed to resolve conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conversation_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         conversation.ID,
		"user1_id":   conversation.User1ID,
		"user2_id":   conversation.User2ID,
		"listing_id": conversation.ListingID,
	})
}

func (h *httpHandler) handleListMessages(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	messages, err := h.chats.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *httpHandler) handleScrapeRun(c *gin.Context) {
	storeID := c.Param("store_id")

	var store catalog.Store
	err := h.db.WithContext(c.Request.Context()).Where("id = ?", storeID).Take(&store).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "store_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load store", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_lookup_failed"})
		return
	}

	summary, err := h.scraper.Run(c.Request.Context(), store)
	if err != nil {
		h.logger.Error("scrape run failed", zap.String("store_id", storeID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scrape_failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *httpHandler) handleListTasks(c *gin.Context) {
	tasks, err := h.ledger.RecentTasks(c.Request.Context(), 50)
	if err != nil {
		h.logger.Error("failed to list scrape tasks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *httpHandler) handleTaskResults(c *gin.Context) {
	results, err := h.ledger.ResultsForTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		h.logger.Error("failed to list scrape results", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *httpHandler) handleListOffers(c *gin.Context) {
	offers, err := h.catalog.ListOffers(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		h.logger.Error("failed to list offers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

func (h *httpHandler) handlePriceHistory(c *gin.Context) {
	entries, err := h.catalog.PriceHistory(c.Request.Context(), c.Param("store_product_id"))
	if err != nil {
		h.logger.Error("failed to load price history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}
