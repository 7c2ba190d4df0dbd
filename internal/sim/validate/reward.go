package validate

import (
	"math"

	"envforge.ai/internal/sim/reward"
	"envforge.ai/internal/sim/schema"
	"envforge.ai/internal/sim/state"
)

const (
	DefaultDominanceRatio = 0.8
	DefaultExploitRatio   = 0.5
)

// RewardOptions holds the audit thresholds. StepBudget, when positive, is
// the configured max_steps the level must carry.
type RewardOptions struct {
	DominanceRatio float64
	ExploitRatio   float64
	StepBudget     int
}

func (o RewardOptions) withDefaults() RewardOptions {
	if o.DominanceRatio <= 0 {
		o.DominanceRatio = DefaultDominanceRatio
	}
	if o.ExploitRatio <= 0 {
		o.ExploitRatio = DefaultExploitRatio
	}
	return o
}

// CheckRewards audits the schedule of sc against st. sol supplies the
// budget, the optimal action count and whether the level is trivial.
func CheckRewards(sc *schema.Schema, st *state.State, sol Solvability, opts RewardOptions) ([]Issue, map[string]float64) {
	opts = opts.withDefaults()
	var issues []Issue
	stats := map[string]float64{}
	sched := sc.Rewards
	budget := sol.Budget

	for _, t := range sched.Triggers {
		if math.IsNaN(t.Value) || math.IsInf(t.Value, 0) {
			issues = append(issues, errorf(CategoryReward, "rewards."+t.Name, "reward value is not finite"))
		}
	}
	if len(issues) > 0 {
		return issues, stats
	}

	var goalMax, incMax, incPerStep, incOverSolve float64
	minGoal := math.Inf(1)
	for _, t := range sched.Triggers {
		if t.Value <= 0 {
			continue
		}
		n := t.Limit.Resolve(st, budget)
		switch t.Kind {
		case reward.KindGoal:
			goalMax += t.Value * float64(n)
			if t.Value < minGoal {
				minGoal = t.Value
			}
		case reward.KindIncidental:
			incMax += t.Value * float64(n)
			incPerStep += t.Value
			incOverSolve += t.Value * float64(min(n, sol.MinActions))
		}
	}
	total := goalMax + incMax
	stats["goal_max_reward"] = goalMax
	stats["incidental_max_reward"] = incMax
	stats["total_max_reward"] = total

	switch {
	case total <= 0:
		issues = append(issues, errorf(CategoryReward, "rewards", "no positive reward is achievable"))
	case goalMax <= 0:
		issues = append(issues, errorf(CategoryReward, "rewards.goal", "no positive goal reward"))
	default:
		share := goalMax / total
		stats["goal_share"] = share
		if share < opts.DominanceRatio {
			issues = append(issues, errorf(CategoryReward, "rewards.incidental", "incidental rewards too large: goal share %.3f below %.3f", share, opts.DominanceRatio))
		}
		if incPerStep >= minGoal {
			issues = append(issues, errorf(CategoryReward, "rewards.incidental", "incidental reward per step %.3f is not below the smallest goal reward %.3f", incPerStep, minGoal))
		}
	}

	if sol.Trivial {
		issues = append(issues, errorf(CategoryReward, "", "trivial level: goal satisfied at start"))
	}

	maxSteps, ok1 := st.Int(state.NSGlobals, state.KeyMaxSteps)
	remaining, ok2 := st.Int(state.NSGlobals, state.KeyRemainingSteps)
	switch {
	case !ok1 || !ok2:
		issues = append(issues, errorf(CategoryConfig, "globals", "step counters missing"))
	case remaining != maxSteps:
		issues = append(issues, errorf(CategoryConfig, "globals."+state.KeyRemainingSteps, "remaining_steps %d differs from max_steps %d", remaining, maxSteps))
	case opts.StepBudget > 0 && maxSteps != opts.StepBudget:
		issues = append(issues, errorf(CategoryConfig, "globals."+state.KeyMaxSteps, "max_steps %d differs from configured budget %d", maxSteps, opts.StepBudget))
	}

	// Closed-form returns of two policies: wander collecting incidental
	// rewards for the whole budget, or solve in MinActions steps.
	explore := incMax
	solve := goalMax + incOverSolve
	stats["explore_return"] = explore
	stats["solve_return"] = solve
	if !hasErrors(sol.Issues) {
		if explore >= opts.ExploitRatio*solve {
			issues = append(issues, errorf(CategoryExploitation, "rewards.incidental", "exploring without solving returns %.3f, at least %.2f of solving (%.3f)", explore, opts.ExploitRatio, solve))
		}
	}
	return issues, stats
}

func hasErrors(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}
