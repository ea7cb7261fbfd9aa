package usecasecontract

// IValidator checks user supplied engagement input.
type IValidator interface {
	ValidateSubjectID(subjectID string) error
	ValidateReportReason(reason string) error
}
