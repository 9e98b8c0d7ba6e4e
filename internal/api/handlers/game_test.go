package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TangmaeTT/MathEveryday/internal/game"
)

func newGameRouter(m *game.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("user_id", "u1") })
	router.POST("/game/start", StartSession(m))
	router.GET("/game/:id", GetSession(m))
	return router
}

func TestStartSessionOutlivesRequest(t *testing.T) {
	m := game.NewManager(game.DefaultDurationSeconds, time.Minute, nil)
	router := newGameRouter(m)

	// net/http cancels the request context as soon as the handler
	// returns; model that explicitly.
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/game/start",
		strings.NewReader(`{"operator":"+"}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	cancel()

	if w.Code != http.StatusOK {
		t.Fatalf("start returned %d: %s", w.Code, w.Body.String())
	}

	time.Sleep(150 * time.Millisecond)
	s, err := m.GetForUser("u1")
	if err != nil {
		t.Fatalf("session gone after the start request finished: %v", err)
	}
	if s.Status() != game.StatusRunning {
		t.Errorf("status = %s shortly after start, want RUNNING", s.Status())
	}

	// And it is still queryable over the API.
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/game/"+s.ID, nil)
	router.ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Errorf("get session returned %d: %s", w2.Code, w2.Body.String())
	}
	if !strings.Contains(w2.Body.String(), string(game.StatusRunning)) {
		t.Errorf("snapshot does not report RUNNING: %s", w2.Body.String())
	}
}
