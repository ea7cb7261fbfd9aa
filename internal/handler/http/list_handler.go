package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/apperrors"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
	"github.com/mikiasgoitom/articulate-engage/internal/handler/http/dto"
	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
)

type ListHandler struct {
	engagement usecasecontract.IEngagementUseCase
	cache      contract.IEngagementCache
}

func NewListHandler(engagement usecasecontract.IEngagementUseCase, cache contract.IEngagementCache) *ListHandler {
	return &ListHandler{engagement: engagement, cache: cache}
}

// RegisterListPageHandler loads the subjects of a list view and registers it under :listKey.
func (h *ListHandler) RegisterListPageHandler(c *gin.Context) {
	var req dto.ListPageRequest
	if err := BindAndValidate(c, &req); err != nil {
		return
	}
	page, err := h.engagement.LoadListPage(c.Request.Context(), c.Param("listKey"), req.SubjectIDs)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, apperrors.ErrValidation) {
			status = http.StatusBadRequest
		}
		ErrorHandler(c, status, err.Error())
		return
	}
	SuccessHandler(c, http.StatusOK, dto.ToListPageResponse(page))
}

// GetListPageHandler returns a registered list view as the cache currently holds it.
func (h *ListHandler) GetListPageHandler(c *gin.Context) {
	page, ok := h.cache.ListPage(c.Param("listKey"))
	if !ok {
		ErrorHandler(c, http.StatusNotFound, "list page not found")
		return
	}
	SuccessHandler(c, http.StatusOK, dto.ToListPageResponse(page))
}

// DeleteListPageHandler forgets a list view.
func (h *ListHandler) DeleteListPageHandler(c *gin.Context) {
	h.cache.RemoveListPage(c.Param("listKey"))
	c.Status(http.StatusNoContent)
}
