// internal/domain/project.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusInactive ProjectStatus = "inactive"
	ProjectStatusDeleted  ProjectStatus = "deleted"
)

// Project is a fundraising project. RaisedAmount is a cached sum of the
// completed donations and only ever grows through reconciliation.
type Project struct {
	ID               string          `json:"id" db:"id"`
	Title            string          `json:"title" db:"title"`
	Description      string          `json:"description" db:"description"`
	TargetAmount     decimal.Decimal `json:"target_amount" db:"target_amount"`
	RaisedAmount     decimal.Decimal `json:"raised_amount" db:"raised_amount"`
	Status           ProjectStatus   `json:"status" db:"status"`
	County           *string         `json:"county,omitempty" db:"county"`
	Category         *string         `json:"category,omitempty" db:"category"`
	ImageURL         *string         `json:"image_url,omitempty" db:"image_url"`
	BeneficiaryCount int             `json:"beneficiary_count" db:"beneficiary_count"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

func (p *Project) IsActive() bool {
	return p.Status == ProjectStatusActive
}
