package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/contract"
	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
)

// MockEngagementClient is a testify mock of the engagement transport.
type MockEngagementClient struct {
	mock.Mock
}

var _ contract.IEngagementClient = (*MockEngagementClient)(nil)

func (m *MockEngagementClient) Like(ctx context.Context, subjectID string) (*entity.EngagementResult, error) {
	return result(m.Called(ctx, subjectID))
}

func (m *MockEngagementClient) Dislike(ctx context.Context, subjectID string) (*entity.EngagementResult, error) {
	return result(m.Called(ctx, subjectID))
}

func (m *MockEngagementClient) Save(ctx context.Context, subjectID string) (*entity.EngagementResult, error) {
	return result(m.Called(ctx, subjectID))
}

func (m *MockEngagementClient) Share(ctx context.Context, subjectID string) (*entity.EngagementResult, error) {
	return result(m.Called(ctx, subjectID))
}

func (m *MockEngagementClient) Report(ctx context.Context, subjectID, reason string) (*entity.EngagementResult, error) {
	return result(m.Called(ctx, subjectID, reason))
}

func result(args mock.Arguments) (*entity.EngagementResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.EngagementResult), args.Error(1)
}

// MockSubjectSource is a testify mock of the authoritative subject reader.
type MockSubjectSource struct {
	mock.Mock
}

var _ contract.ISubjectSource = (*MockSubjectSource)(nil)

func (m *MockSubjectSource) FetchSubject(ctx context.Context, subjectID string) (*entity.SubjectSnapshot, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.SubjectSnapshot), args.Error(1)
}

// MockAuthRedirector records re-authentication hand-offs.
type MockAuthRedirector struct {
	mock.Mock
}

var _ contract.IAuthRedirector = (*MockAuthRedirector)(nil)

func (m *MockAuthRedirector) RequireAuthentication(ctx context.Context, subjectID string, action string) {
	m.Called(ctx, subjectID, action)
}
