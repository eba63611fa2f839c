package agents

import (
	"fmt"
	"math"

	"github.com/talgya/shark-market/internal/expectations"
)

// Policy maps an agent's normalized resources and beliefs to a normalized
// consumption level and a target risky-asset share. Implementations must be
// deterministic; the returned share is not guaranteed to be in [0, 1].
type Policy interface {
	ConsumptionAndShare(resources float64, b expectations.Beliefs) (consumption, share float64)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(resources float64, b expectations.Beliefs) (float64, float64)

func (f PolicyFunc) ConsumptionAndShare(resources float64, b expectations.Beliefs) (float64, float64) {
	return f(resources, b)
}

// FixedPolicy consumes a constant fraction of resources and holds a constant
// risky share regardless of beliefs.
type FixedPolicy struct {
	ConsumptionRate float64
	RiskyShare      float64
}

func (p FixedPolicy) ConsumptionAndShare(resources float64, _ expectations.Beliefs) (float64, float64) {
	return p.ConsumptionRate * resources, p.RiskyShare
}

// MertonPolicy holds the Merton-Samuelson share (E[R]-Rfree)/(CRRA·σ²) and
// consumes a constant marginal propensity out of resources.
type MertonPolicy struct {
	CRRA  float64
	MPC   float64
	Rfree float64
}

func (p MertonPolicy) ConsumptionAndShare(resources float64, b expectations.Beliefs) (float64, float64) {
	premium := b.RiskyAvg - p.Rfree
	variance := b.RiskyStd * b.RiskyStd
	var share float64
	switch {
	case variance > 0:
		share = premium / (p.CRRA * variance)
	case premium > 0:
		share = math.Inf(1)
	case premium < 0:
		share = math.Inf(-1)
	}
	return p.MPC * resources, share
}

// Policy kinds accepted by PolicySpec.
const (
	PolicyFixed  = "fixed"
	PolicyMerton = "merton"
)

// PolicySpec names a policy shape and its parameters.
type PolicySpec struct {
	Kind            string  `yaml:"kind" json:"kind" validate:"omitempty,oneof=fixed merton"`
	CRRA            float64 `yaml:"crra" json:"crra"`
	MPC             float64 `yaml:"mpc" json:"mpc"`
	ConsumptionRate float64 `yaml:"consumption_rate" json:"consumption_rate"`
	RiskyShare      float64 `yaml:"risky_share" json:"risky_share"`
}

// Build constructs the policy. rfree is the agent's riskless return.
func (s PolicySpec) Build(rfree float64) (Policy, error) {
	switch s.Kind {
	case PolicyFixed:
		return FixedPolicy{ConsumptionRate: s.ConsumptionRate, RiskyShare: s.RiskyShare}, nil
	case PolicyMerton, "":
		if s.CRRA <= 0 {
			return nil, fmt.Errorf("merton policy needs CRRA > 0, got %v", s.CRRA)
		}
		return MertonPolicy{CRRA: s.CRRA, MPC: s.MPC, Rfree: rfree}, nil
	default:
		return nil, fmt.Errorf("unknown policy kind %q", s.Kind)
	}
}
