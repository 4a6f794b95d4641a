package entitlements

import "strings"

type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// Features describes what a plan unlocks for an account.
type Features struct {
	MaxProjects       int  `json:"max_projects"`
	MaxTeamMembers    int  `json:"max_team_members"`
	APIRequestsPerMin int  `json:"api_requests_per_min"`
	CustomDomains     bool `json:"custom_domains"`
	PrioritySupport   bool `json:"priority_support"`
}

// Normalize maps arbitrary plan strings onto a known plan, defaulting to free.
func Normalize(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	case string(PlanBusiness):
		return PlanBusiness
	default:
		return PlanFree
	}
}

// Rank orders plans so callers can pick the best of several mappings.
func Rank(plan Plan) int {
	switch plan {
	case PlanBusiness:
		return 2
	case PlanPro:
		return 1
	default:
		return 0
	}
}

// FeaturesFor returns the feature limits granted by a plan.
func FeaturesFor(plan Plan) Features {
	switch plan {
	case PlanBusiness:
		return Features{
			MaxProjects:       100,
			MaxTeamMembers:    25,
			APIRequestsPerMin: 600,
			CustomDomains:     true,
			PrioritySupport:   true,
		}
	case PlanPro:
		return Features{
			MaxProjects:       20,
			MaxTeamMembers:    5,
			APIRequestsPerMin: 120,
			CustomDomains:     true,
			PrioritySupport:   false,
		}
	default:
		return Features{
			MaxProjects:       3,
			MaxTeamMembers:    1,
			APIRequestsPerMin: 30,
			CustomDomains:     false,
			PrioritySupport:   false,
		}
	}
}
