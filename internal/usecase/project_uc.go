// internal/usecase/project_uc.go
package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
	"github.com/Doc-Scripter/HelpingHand/internal/repository"
)

const recentDonationsLimit = 10

type ProjectDetail struct {
	Project            *domain.Project   `json:"project"`
	AcceptingDonations bool              `json:"accepting_donations"`
	RecentDonations    []domain.Donation `json:"recent_donations"`
}

type ProjectUsecase struct {
	projects  repository.ProjectRepository
	donations repository.DonationRepository
	logger    *zap.Logger
}

func NewProjectUsecase(projects repository.ProjectRepository, donations repository.DonationRepository, logger *zap.Logger) *ProjectUsecase {
	return &ProjectUsecase{
		projects:  projects,
		donations: donations,
		logger:    logger.With(zap.String("component", "project_usecase")),
	}
}

func (uc *ProjectUsecase) ListActive(ctx context.Context) ([]domain.Project, error) {
	return uc.projects.ListActive(ctx)
}

// Get returns a project that is not deleted, with its latest donations.
// Payer phone numbers are masked.
func (uc *ProjectUsecase) Get(ctx context.Context, id string) (*ProjectDetail, error) {
	p, err := uc.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
	}

	donations, err := uc.donations.ListByProject(ctx, id, recentDonationsLimit)
	if err != nil {
		return nil, err
	}
	for i := range donations {
		donations[i].PhoneNumber = maskPhone(donations[i].PhoneNumber)
	}

	return &ProjectDetail{
		Project:            p,
		AcceptingDonations: p.IsActive(),
		RecentDonations:    donations,
	}, nil
}

// maskPhone keeps the first four and last three digits.
func maskPhone(phone string) string {
	if len(phone) < 8 {
		return "****"
	}
	masked := []byte(phone)
	for i := 4; i < len(masked)-3; i++ {
		masked[i] = '*'
	}
	return string(masked)
}
