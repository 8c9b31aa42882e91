package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/flowchat/engine/internal/hub"
	"github.com/flowchat/engine/internal/server"
	"github.com/flowchat/engine/internal/store"
	"github.com/flowchat/engine/pkg/api"
	"github.com/flowchat/engine/pkg/flow"
	"github.com/flowchat/engine/pkg/provider"
)

type stubClient struct {
	chat     func(*api.ChatRequest, provider.StreamHandler) (*api.ChatResponse, error)
	validate func() (bool, error)
}

func (c *stubClient) Chat(
	_ context.Context, req *api.ChatRequest, onChunk provider.StreamHandler,
) (*api.ChatResponse, error) {
	return c.chat(req, onChunk)
}

func (c *stubClient) ValidateAPIKey(context.Context) (bool, error) {
	if c.validate == nil {
		return true, nil
	}
	return c.validate()
}

func echoStub() *stubClient {
	return &stubClient{
		chat: func(
			req *api.ChatRequest, _ provider.StreamHandler,
		) (*api.ChatResponse, error) {
			return &api.ChatResponse{
				Content:  "out: " + req.Messages[0].Content,
				Provider: api.ProviderAnthropic,
			}, nil
		},
	}
}

type testServer struct {
	server *server.Server
	router *gin.Engine
	store  store.FlowStore
	hub    *hub.Hub
}

func newTestServer(t *testing.T, client provider.Client) *testServer {
	return newTestServerWith(t, client, nil)
}

func newTestServerWith(
	t *testing.T, client provider.Client, archiver server.Archiver,
) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	h := hub.New()
	t.Cleanup(h.Close)

	srv := server.NewServer(&server.Options{
		Store:    st,
		Hub:      h,
		Archiver: archiver,
		Clients: map[api.Provider]provider.Client{
			api.ProviderAnthropic: client,
			api.ProviderOpenAI:    client,
		},
		Params: flow.Params{},
	})
	return &testServer{
		server: srv,
		router: srv.SetupRoutes(),
		store:  st,
		hub:    h,
	}
}

func (ts *testServer) do(
	t *testing.T, method, path string, body any,
) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var res T
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestCORSHeaders(t *testing.T) {
	as := assert.New(t)

	ts := newTestServer(t, echoStub())
	w := ts.do(t, http.MethodOptions, "/api/flows", nil)

	as.Equal(http.StatusOK, w.Code)
	as.Equal("*", w.Header().Get("Access-Control-Allow-Origin"))
	as.Contains(
		w.Header().Get("Access-Control-Allow-Methods"), "DELETE",
	)
}

func TestMethodNotAllowed(t *testing.T) {
	as := assert.New(t)

	ts := newTestServer(t, echoStub())
	w := ts.do(t, http.MethodDelete, "/api/chat", nil)

	as.Equal(http.StatusMethodNotAllowed, w.Code)
	res := decodeJSON[api.ErrorResponse](t, w)
	as.Equal(http.StatusMethodNotAllowed, res.Status)
}
