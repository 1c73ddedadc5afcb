// Package collect drives paginated, quota-aware collection of items
// across independent fetch plans with run-wide deduplication.
package collect

// PlanType distinguishes account-based and keyword-based queries.
type PlanType string

const (
	PlanAccount PlanType = "account"
	PlanKeyword PlanType = "keyword"
)

// MaxItemsPerPlan caps any single plan's quota.
const MaxItemsPerPlan = 200

// Plan describes one independent query with its own pagination state
// and quota. Plans are built once per run and never mutated.
type Plan struct {
	Type     PlanType
	Label    string
	Handle   string
	Query    string
	Language string
	Tags     []string
	Limit    int
}

// ClampLimit bounds a per-plan quota into [1, MaxItemsPerPlan].
func ClampLimit(limit int) int {
	return clamp(limit, 1, MaxItemsPerPlan)
}

// GlobalBudget computes the run-wide item budget. The configured total
// never starves plans below their individually assigned quotas: the
// budget is max(configured, sum of plan limits), and a non-positive
// configured cap means the plan sum alone.
func GlobalBudget(configured int, plans []Plan) int {
	sum := 0
	for _, plan := range plans {
		sum += plan.Limit
	}
	if configured > sum {
		return configured
	}
	return sum
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
