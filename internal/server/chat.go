package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/studysage/sage/internal/assistant"
	"github.com/studysage/sage/internal/retrieval"
	"github.com/studysage/sage/internal/store"
)

// persistTimeout bounds the fire-and-forget save that runs after the
// response has gone out.
const persistTimeout = 5 * time.Second

// defaultHistoryTurns is how many persisted turns are loaded when the
// client sends no history of its own.
const defaultHistoryTurns = 10

type ChatHandler struct {
	Pipeline  *assistant.Pipeline
	Store     *store.Store
	Retrieval *retrieval.Store
	Logger    *log.Logger
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
	g.GET("/sessions/:id/history", h.history)
}

// ChatRequest is the inbound chat payload. History is optional; when it is
// absent and a session id is present, recent persisted turns stand in.
type ChatRequest struct {
	Message    string                `json:"message"`
	SessionID  string                `json:"session_id"`
	History    []assistant.Message   `json:"history"`
	Article    *assistant.ArticleRef `json:"article"`
	Preference string                `json:"preference"`
}

// chat runs the full pipeline for one message. A missing message is the
// only client error; degraded runs still answer with 200.
func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	userID, _ := c.Get("user_id").(string)

	areq := assistant.Request{
		Message:    req.Message,
		History:    req.History,
		SessionID:  req.SessionID,
		UserID:     userID,
		Article:    req.Article,
		Preference: req.Preference,
	}
	if len(areq.History) == 0 && h.Store != nil && req.SessionID != "" {
		turns, err := h.Store.RecentTurns(c.Request().Context(), req.SessionID, defaultHistoryTurns)
		if err != nil {
			h.Logger.Printf("load history for session %s: %v", req.SessionID, err)
		} else {
			areq.History = store.History(turns)
		}
	}

	payload, err := h.Pipeline.Answer(c.Request().Context(), areq)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyMessage) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.persist(areq, payload)
	return c.JSON(http.StatusOK, payload)
}

// history returns the stored turns of a session, oldest first.
func (h *ChatHandler) history(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "history is not enabled")
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	turns, err := h.Store.RecentTurns(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"turns": turns})
}

// persist saves the turn and feeds the retrieval index off the response
// path. The request context is finished by the time this runs, so the work
// gets its own deadline.
func (h *ChatHandler) persist(req assistant.Request, p assistant.Payload) {
	if h.Store == nil && h.Retrieval == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if h.Store != nil {
			turn := store.Turn{
				SessionID: req.SessionID,
				UserID:    req.UserID,
				Message:   req.Message,
				Answer:    p.Answer,
				Sources:   p.Sources,
				Images:    p.Images,
				Videos:    p.Videos,
				WebUsed:   p.Trace.UsedWeb,
				Reason:    string(p.Trace.DecisionReason),
				Elapsed:   p.Trace.Elapsed,
			}
			if _, err := h.Store.SaveTurn(ctx, turn); err != nil {
				h.Logger.Printf("save turn for session %s: %v", req.SessionID, err)
			}
		}
		if h.Retrieval != nil && req.SessionID != "" {
			if err := h.Retrieval.Index(req.SessionID, req.Message+"\n"+p.Answer); err != nil {
				h.Logger.Printf("index turn for session %s: %v", req.SessionID, err)
			}
		}
	}()
}
