package validator

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/apperrors"
	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
)

const (
	subjectIDRules    = "notblank,max=128"
	reportReasonRules = "notblank,max=500"
)

// AppValidator implements the usecase IValidator interface.
type AppValidator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator that implements the usecase IValidator interface.
func NewValidator() usecasecontract.IValidator {
	v := validator.New()
	_ = v.RegisterValidation("notblank", notBlankFL)
	return &AppValidator{validate: v}
}

// ValidateSubjectID checks that a subject id is present and of sane length.
func (av *AppValidator) ValidateSubjectID(subjectID string) error {
	return toValidationError("subject_id", av.validate.Var(subjectID, subjectIDRules))
}

// ValidateReportReason checks that a report carries a non-blank reason.
func (av *AppValidator) ValidateReportReason(reason string) error {
	return toValidationError("reason", av.validate.Var(reason, reportReasonRules))
}

// RegisterCustomValidators registers custom validation functions with the Gin validator.
func RegisterCustomValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notblank", notBlankFL)
	}
}

func notBlankFL(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func toValidationError(field string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.NewValidationError(field, err.Error())
	}
	switch verrs[0].Tag() {
	case "notblank":
		return apperrors.NewValidationError(field, "is required")
	case "max":
		return apperrors.NewValidationError(field, "must be at most "+verrs[0].Param()+" characters")
	default:
		return apperrors.NewValidationError(field, "is invalid")
	}
}
