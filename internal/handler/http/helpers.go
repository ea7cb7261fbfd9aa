package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/apperrors"
	"github.com/mikiasgoitom/articulate-engage/internal/handler/http/dto"
	"github.com/mikiasgoitom/articulate-engage/internal/handler/presenter"
	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
)

// ErrorHandler centralizes error handling for HTTP responses
func ErrorHandler(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{Error: message})
}

// SuccessHandler centralizes success responses
func SuccessHandler(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// MessageHandler centralizes message responses
func MessageHandler(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.MessageResponse{Message: message})
}

// BindAndValidate binds JSON request and validates it
func BindAndValidate(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		ErrorHandler(c, http.StatusBadRequest, err.Error())
		return err
	}
	return nil
}

// outcomeStatus maps how an action settled to its HTTP status.
func outcomeStatus(out usecasecontract.Outcome) int {
	switch out {
	case usecasecontract.OutcomeSuppressed:
		return http.StatusAccepted
	case usecasecontract.OutcomeAuthRequired:
		return http.StatusUnauthorized
	case usecasecontract.OutcomeRolledBack:
		return http.StatusBadGateway
	case usecasecontract.OutcomeInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

// OutcomeHandler writes the settled action and the subject's current view.
func OutcomeHandler(c *gin.Context, out usecasecontract.Outcome, err error, view presenter.ViewModel, redirectURL string) {
	switch out {
	case usecasecontract.OutcomeAuthRequired:
		c.JSON(http.StatusUnauthorized, dto.AuthRequiredResponse{Error: apperrors.ErrAuthRequired.Error(), Redirect: redirectURL})
		return
	case usecasecontract.OutcomeInvalid:
		msg := "invalid request"
		if err != nil {
			msg = err.Error()
		}
		ErrorHandler(c, http.StatusBadRequest, msg)
		return
	}
	c.JSON(outcomeStatus(out), dto.ActionResponse{Outcome: string(out), View: view})
}

// subjectErrorStatus maps a load failure to its HTTP status.
func subjectErrorStatus(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrSubjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrAuthRequired):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}
