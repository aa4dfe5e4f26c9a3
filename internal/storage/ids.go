package storage

import (
	"time"

	"github.com/google/uuid"

	"daily-planner/internal/plan"
)

func GenerateUserID() string {
	return uuid.NewString()
}

func GeneratePlanID() string {
	return uuid.NewString()
}

// prepareUpsert fills the fields every backend sets on save. existing is the
// currently stored plan for the same (user, date), or nil.
func prepareUpsert(p *plan.Plan, existing *plan.Plan) *plan.Plan {
	c := p.Clone()
	if existing != nil {
		c.ID = existing.ID
	}
	if c.ID == "" {
		c.ID = GeneratePlanID()
	}
	c.UpdatedAt = time.Now().UTC()
	return c
}
