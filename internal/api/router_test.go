package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lukajuskovic/sitebot/internal/domain"
	"github.com/lukajuskovic/sitebot/internal/llm"
	"github.com/lukajuskovic/sitebot/internal/repository"
	"github.com/lukajuskovic/sitebot/internal/service"
)

const adminKey = "test-admin-key"

type stubQueue struct{}

func (stubQueue) Enqueue(string) error { return nil }

type fullQueue struct{}

func (fullQueue) Enqueue(string) error { return errors.New("crawl queue is full") }

type stubRetriever struct{}

func (stubRetriever) Retrieve(context.Context, string, string, string) ([]domain.ContextItem, error) {
	return nil, nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, []llm.Part) (string, error) {
	return "We ship worldwide.", nil
}

func (stubGenerator) GenerateText(context.Context, string) (string, error) {
	return "", nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	return newTestRouterWithQueue(t, stubQueue{})
}

func newTestRouterWithQueue(t *testing.T, queue service.JobQueue) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zap.NewNop()
	siteRepo := repository.NewSiteRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	siteService := service.NewSiteService(siteRepo, queue, log)
	chatService := service.NewChatService(siteRepo, sessionRepo, stubRetriever{}, stubGenerator{}, log)

	return SetupRouter(siteService, chatService, RouterConfig{
		APIKey:       adminKey,
		AllowOrigins: []string{"*"},
	})
}

func doJSON(router *gin.Engine, method, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerSite(t *testing.T, router *gin.Engine, url string) domain.RegisterSiteResponse {
	t.Helper()
	w := doJSON(router, http.MethodPost, "/api/admin/sites",
		domain.RegisterSiteRequest{URL: url}, map[string]string{"X-API-Key": adminKey})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp domain.RegisterSiteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminEndpointsRequireKey(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/admin/sites",
		domain.RegisterSiteRequest{URL: "https://shop.example"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodGet, "/api/admin/sites", nil,
		map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterAndFetchSite(t *testing.T) {
	router := newTestRouter(t)

	resp := registerSite(t, router, "https://shop.example")
	require.NotNil(t, resp.Site)
	assert.NotEmpty(t, resp.Site.ID)
	assert.NotEmpty(t, resp.APIKey)
	assert.Equal(t, domain.ScrapingPending, resp.Site.ScrapingStatus)

	w := doJSON(router, http.MethodGet, "/api/admin/sites/"+resp.Site.ID, nil,
		map[string]string{"X-API-Key": adminKey})
	require.Equal(t, http.StatusOK, w.Code)

	var site domain.Site
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &site))
	assert.Equal(t, resp.Site.ID, site.ID)

	w = doJSON(router, http.MethodGet, "/api/admin/sites/no-such-id", nil,
		map[string]string{"X-API-Key": adminKey})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterExistingSiteReturnsOK(t *testing.T) {
	router := newTestRouter(t)
	first := registerSite(t, router, "https://shop.example")

	w := doJSON(router, http.MethodPost, "/api/admin/sites",
		domain.RegisterSiteRequest{URL: "https://shop.example"},
		map[string]string{"X-API-Key": adminKey})
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.RegisterSiteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, first.Site.ID, resp.Site.ID)
	// The key is only ever shown once.
	assert.Empty(t, resp.APIKey)
}

func TestRegisterWithFullQueueStillReturnsKey(t *testing.T) {
	router := newTestRouterWithQueue(t, fullQueue{})

	w := doJSON(router, http.MethodPost, "/api/admin/sites",
		domain.RegisterSiteRequest{URL: "https://shop.example"},
		map[string]string{"X-API-Key": adminKey})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp domain.RegisterSiteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Site)
	// The key is shown exactly once, so it must survive the failed
	// enqueue; the warning tells the operator no crawl started.
	assert.NotEmpty(t, resp.APIKey)
	assert.Contains(t, resp.Warning, "crawl not started")
	assert.Equal(t, domain.ScrapingPending, resp.Site.ScrapingStatus)

	// The returned key authenticates chat for the site.
	chat := doJSON(router, http.MethodPost, "/api/chat",
		domain.ChatRequest{Query: "hi"}, map[string]string{"X-API-Key": resp.APIKey})
	assert.Equal(t, http.StatusOK, chat.Code)
}

func TestRegisterInvalidURL(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(router, http.MethodPost, "/api/admin/sites",
		domain.RegisterSiteRequest{URL: "not a url"},
		map[string]string{"X-API-Key": adminKey})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatRequiresSiteKey(t *testing.T) {
	router := newTestRouter(t)
	registerSite(t, router, "https://shop.example")

	w := doJSON(router, http.MethodPost, "/api/chat",
		domain.ChatRequest{Query: "hi"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/api/chat",
		domain.ChatRequest{Query: "hi"}, map[string]string{"X-API-Key": "bogus"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatConversation(t *testing.T) {
	router := newTestRouter(t)
	site := registerSite(t, router, "https://shop.example")
	headers := map[string]string{"X-API-Key": site.APIKey}

	w := doJSON(router, http.MethodPost, "/api/chat",
		domain.ChatRequest{Query: "Do you ship abroad?"}, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp domain.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "We ship worldwide.", resp.Answer)
	require.NotEmpty(t, resp.SessionID)

	// A follow-up on the same session keeps its id.
	w = doJSON(router, http.MethodPost, "/api/chat",
		domain.ChatRequest{SessionID: resp.SessionID, Query: "How long does it take?"}, headers)
	require.Equal(t, http.StatusOK, w.Code)

	var second domain.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, resp.SessionID, second.SessionID)
}

func TestChatMissingQuery(t *testing.T) {
	router := newTestRouter(t)
	site := registerSite(t, router, "https://shop.example")

	w := doJSON(router, http.MethodPost, "/api/chat",
		map[string]string{}, map[string]string{"X-API-Key": site.APIKey})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
