// Package agents provides the agent record, the policy capability, and the
// per-agent update protocol the simulation loop invokes every tick.
package agents

import (
	"github.com/talgya/shark-market/internal/expectations"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// IncomeProcess parameterizes quarterly labor income.
type IncomeProcess struct {
	PermGroFac float64 `json:"perm_gro_fac"` // Permanent income growth factor per quarter
	PermShkStd float64 `json:"perm_shk_std"` // Std of the permanent lognormal shock
	TranShkStd float64 `json:"tran_shk_std"` // Std of the transitory lognormal shock
	Rfree      float64 `json:"rfree"`        // Gross riskless return per quarter
}

// Agent is one decision-maker. Wealth is held in units normalized by
// permanent income so that policies are scale-invariant.
type Agent struct {
	ID    AgentID `json:"id"`
	Class string  `json:"class"` // Label of the parameter class the agent was drawn from

	// Wealth state (normalized by PermanentIncome).
	AssetsNormalized float64 `json:"a_nrm"`
	Resources        float64 `json:"m_nrm"` // Market resources at the last macro day
	PermanentIncome  float64 `json:"p_lvl"`

	// Controls from the last macro day.
	Consumption float64 `json:"c_nrm"`
	RiskyShare  float64 `json:"risky_share"`

	// Portfolio
	Shares float64 `json:"shares"` // Always >= 0

	// Beliefs the agent currently acts on, and the parameters it truly holds.
	Beliefs     expectations.Beliefs `json:"beliefs"`
	TrueBeliefs expectations.Beliefs `json:"true_beliefs"`

	Income IncomeProcess `json:"income"`

	// MacroDay is the day of the quarter, in [0, days per quarter), on which
	// the agent realizes income and consumption.
	MacroDay int `json:"macro_day"`

	Policy Policy `json:"-"`
}

// AssetsLevel is the agent's assets in income units (not dollars).
func (a *Agent) AssetsLevel() float64 {
	return a.AssetsNormalized * a.PermanentIncome
}
