package model

import (
	"edupay-service/internal/domain"
)

type PlanType string

const (
	PlanDaily     PlanType = "daily"
	PlanWeekly    PlanType = "weekly"
	PlanMonthly   PlanType = "monthly"
	PlanFourMonth PlanType = "four_month"
	PlanAIMonthly PlanType = "ai_monthly"
	// PlanPerCourse is the legacy per-course plan; it requires a course reference.
	PlanPerCourse PlanType = "per_course"
)

// Plan is one entry of the fixed catalog: price, duration and the feature
// flags granted while a subscription of this plan is active.
type Plan struct {
	Type         PlanType
	Name         string
	Price        int64 // minor XAF units
	DurationDays int
	CourseAccess bool
	TestAccess   bool
	UnlimitedAI  bool
	AITokenLimit int64 // per-window allotment when AI access is metered; 0 = none
}

// catalog is fixed business data. Prices and durations are contractual;
// do not derive them from config.
var catalog = []Plan{
	{Type: PlanDaily, Name: "Daily", Price: 100, DurationDays: 1, CourseAccess: true, TestAccess: true},
	{Type: PlanWeekly, Name: "Weekly", Price: 500, DurationDays: 7, CourseAccess: true, TestAccess: true},
	{Type: PlanMonthly, Name: "Monthly", Price: 1500, DurationDays: 30, CourseAccess: true, TestAccess: true},
	{Type: PlanFourMonth, Name: "Four Months", Price: 4000, DurationDays: 120, CourseAccess: true, TestAccess: true},
	{Type: PlanAIMonthly, Name: "AI Monthly", Price: 500, DurationDays: 30, UnlimitedAI: true},
	{Type: PlanPerCourse, Name: "Per Course", Price: 1000, DurationDays: 90, CourseAccess: true, AITokenLimit: 50000},
}

// Catalog returns a copy of the plan table.
func Catalog() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// PlanByType looks a plan up in the catalog.
func PlanByType(t PlanType) (*Plan, error) {
	for i := range catalog {
		if catalog[i].Type == t {
			p := catalog[i]
			return &p, nil
		}
	}
	return nil, domain.ErrUnknownPlan
}
