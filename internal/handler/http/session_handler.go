package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikiasgoitom/articulate-engage/internal/handler/http/dto"
)

// sessionStore is the part of the session credential the UI may replace.
type sessionStore interface {
	SetToken(token string)
	Clear()
	Token(ctx context.Context) (string, error)
	ViewerKey() string
}

// viewerResetter drops cached viewer flags when the signed-in viewer changes.
type viewerResetter interface {
	ResetViewer(ctx context.Context)
}

type SessionHandler struct {
	session     sessionStore
	engagement  viewerResetter
	redirectURL string
}

func NewSessionHandler(session sessionStore, engagement viewerResetter, redirectURL string) *SessionHandler {
	return &SessionHandler{session: session, engagement: engagement, redirectURL: redirectURL}
}

// SetSessionHandler installs the token the viewer obtained from the login flow.
func (h *SessionHandler) SetSessionHandler(c *gin.Context) {
	var req dto.SessionRequest
	if err := BindAndValidate(c, &req); err != nil {
		return
	}
	previous := h.session.ViewerKey()
	h.session.SetToken(req.Token)
	if _, err := h.session.Token(c.Request.Context()); err != nil {
		h.session.Clear()
		h.resetIfChanged(c.Request.Context(), previous)
		c.JSON(http.StatusUnauthorized, dto.AuthRequiredResponse{Error: err.Error(), Redirect: h.redirectURL})
		return
	}
	h.resetIfChanged(c.Request.Context(), previous)
	MessageHandler(c, http.StatusOK, "session updated")
}

// ClearSessionHandler signs the viewer out locally.
func (h *SessionHandler) ClearSessionHandler(c *gin.Context) {
	previous := h.session.ViewerKey()
	h.session.Clear()
	h.resetIfChanged(c.Request.Context(), previous)
	MessageHandler(c, http.StatusOK, "session cleared")
}

func (h *SessionHandler) resetIfChanged(ctx context.Context, previous string) {
	if h.session.ViewerKey() != previous {
		h.engagement.ResetViewer(ctx)
	}
}
