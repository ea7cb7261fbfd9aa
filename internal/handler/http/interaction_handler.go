package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
	"github.com/mikiasgoitom/articulate-engage/internal/handler/http/dto"
	"github.com/mikiasgoitom/articulate-engage/internal/handler/presenter"
)

type InteractionHandler struct {
	presenters  *presenter.Registry
	redirectURL string
}

func NewInteractionHandler(presenters *presenter.Registry, redirectURL string) *InteractionHandler {
	return &InteractionHandler{
		presenters:  presenters,
		redirectURL: redirectURL,
	}
}

// GetSubjectHandler returns the subject's view, loading it on a cold cache.
func (h *InteractionHandler) GetSubjectHandler(c *gin.Context) {
	p, release := h.presenters.Acquire(c.Param("subjectID"))
	defer release()
	if err := p.Load(c.Request.Context()); err != nil {
		ErrorHandler(c, subjectErrorStatus(err), err.Error())
		return
	}
	SuccessHandler(c, http.StatusOK, p.ViewModel())
}

// ActionHandler returns a handler that performs a flagless or toggle action.
func (h *InteractionHandler) ActionHandler(action entity.ActionType) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, release := h.presenters.Acquire(c.Param("subjectID"))
		defer release()
		out := p.Handle(c.Request.Context(), action)
		OutcomeHandler(c, out, nil, p.ViewModel(), h.redirectURL)
	}
}

// ReportHandler files a report with the reason from the request body.
func (h *InteractionHandler) ReportHandler(c *gin.Context) {
	var req dto.ReportRequest
	if err := BindAndValidate(c, &req); err != nil {
		return
	}
	p, release := h.presenters.Acquire(c.Param("subjectID"))
	defer release()
	out, err := p.HandleReport(c.Request.Context(), req.Reason)
	OutcomeHandler(c, out, err, p.ViewModel(), h.redirectURL)
}
