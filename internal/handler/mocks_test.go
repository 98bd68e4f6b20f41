package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
	"github.com/Doc-Scripter/HelpingHand/internal/usecase"
)

type mockDonator struct{ mock.Mock }

func (m *mockDonator) Donate(ctx context.Context, in usecase.DonateInput) (*usecase.DonateResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*usecase.DonateResult)
	return res, args.Error(1)
}

type mockStatusChecker struct{ mock.Mock }

func (m *mockStatusChecker) CheckStatus(ctx context.Context, id string) (*usecase.StatusResult, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*usecase.StatusResult)
	return res, args.Error(1)
}

type mockCallbackProcessor struct{ mock.Mock }

func (m *mockCallbackProcessor) ProcessSTKCallback(ctx context.Context, payload []byte) usecase.ReconcileResult {
	return m.Called(ctx, payload).Get(0).(usecase.ReconcileResult)
}

func (m *mockCallbackProcessor) ProcessTimeout(ctx context.Context, payload []byte) usecase.ReconcileResult {
	return m.Called(ctx, payload).Get(0).(usecase.ReconcileResult)
}

type mockProjectReader struct{ mock.Mock }

func (m *mockProjectReader) ListActive(ctx context.Context) ([]domain.Project, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]domain.Project)
	return res, args.Error(1)
}

func (m *mockProjectReader) Get(ctx context.Context, id string) (*usecase.ProjectDetail, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*usecase.ProjectDetail)
	return res, args.Error(1)
}
