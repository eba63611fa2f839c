package agents

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/talgya/shark-market/internal/expectations"
	"github.com/talgya/shark-market/internal/stats"
)

// DefaultDollarsPerUnit converts one unit of normalized income into dollars.
const DefaultDollarsPerUnit = 1500

// Population owns the agents of one run and implements the update protocol
// the loop applies to them. It is driven by a single goroutine.
type Population struct {
	Agents         []*Agent
	DollarsPerUnit float64
	Anomalies      *AnomalyLog

	rng *rand.Rand
	log *slog.Logger
}

// NewPopulation wraps agents for simulation. rng drives income shocks.
func NewPopulation(agents []*Agent, dollarsPerUnit float64, rng *rand.Rand, logger *slog.Logger) *Population {
	if logger == nil {
		logger = slog.Default()
	}
	if dollarsPerUnit <= 0 {
		dollarsPerUnit = DefaultDollarsPerUnit
	}
	return &Population{
		Agents:         agents,
		DollarsPerUnit: dollarsPerUnit,
		Anomalies:      NewAnomalyLog(logger),
		rng:            rng,
		log:            logger,
	}
}

// ShareDemand computes how many shares the agent wants to own at price, from
// its current normalized assets and the policy evaluated at its beliefs.
func (p *Population) ShareDemand(a *Agent, price float64) float64 {
	if a.Policy == nil {
		panic("agents: share demand requested before a policy was assigned")
	}
	if a.AssetsNormalized < 0 {
		p.Anomalies.Record(AnomalyNegativeAssets, a.ID, "a_nrm", a.AssetsNormalized, "during", "share_demand")
	}

	_, share := a.Policy.ConsumptionAndShare(a.AssetsNormalized, a.Beliefs)
	share = p.clampShare(a, share)

	wealth := share * a.AssetsNormalized * a.PermanentIncome * p.DollarsPerUnit
	target := wealth / price

	switch {
	case math.IsNaN(target):
		p.Anomalies.Record(AnomalyNaNShareTarget, a.ID, "price", price)
		target = 0
	case target < 0:
		p.Anomalies.Record(AnomalyNegativeShareTarget, a.ID, "target", target)
		target = 0
	}
	return target
}

func (p *Population) clampShare(a *Agent, share float64) float64 {
	switch {
	case math.IsNaN(share):
		p.Anomalies.Record(AnomalyNaNShareTarget, a.ID, "risky_avg", a.Beliefs.RiskyAvg, "risky_std", a.Beliefs.RiskyStd)
		return 0
	case share < 0:
		p.Anomalies.Record(AnomalyShareBelowZero, a.ID, "share", share,
			"risky_avg", a.Beliefs.RiskyAvg, "risky_std", a.Beliefs.RiskyStd)
		return 0
	case share > 1:
		p.Anomalies.Record(AnomalyShareAboveOne, a.ID, "share", share,
			"risky_avg", a.Beliefs.RiskyAvg, "risky_std", a.Beliefs.RiskyStd)
		return 1
	}
	return share
}

// InitShares sets every agent's holdings to its share demand at price.
func (p *Population) InitShares(price float64) {
	for _, a := range p.Agents {
		a.Shares = p.ShareDemand(a, price)
	}
}

// Attend updates the agent's beliefs, rebalances its holdings to the new
// target, and returns the signed share delta to route through the broker.
func (p *Population) Attend(a *Agent, price float64, b expectations.Beliefs) float64 {
	a.Beliefs = b
	target := p.ShareDemand(a, price)
	delta := target - a.Shares
	a.Shares = target
	return delta
}

// MacroUpdate realizes one quarter of labor income and consumption for the
// agent using its true beliefs. Capital gains are credited daily elsewhere, so
// the risky return is held at one here. Shares are sold if the remaining
// assets are worth less than the holdings; shares are never bought. Returns
// the non-positive share delta.
func (p *Population) MacroUpdate(a *Agent, price float64) float64 {
	if a.Policy == nil {
		panic("agents: macro update requested before a policy was assigned")
	}

	permShk := p.lognormalShock(a.Income.PermShkStd)
	tranShk := p.lognormalShock(a.Income.TranShkStd)
	growth := a.Income.PermGroFac * permShk
	if growth <= 0 {
		p.Anomalies.Record(AnomalyNonPositiveGrowth, a.ID, "perm_gro_fac", a.Income.PermGroFac, "perm_shk", permShk)
		growth = 1
	}

	portfolioReturn := a.RiskyShare + (1-a.RiskyShare)*a.Income.Rfree
	a.PermanentIncome *= growth
	bank := portfolioReturn * a.AssetsNormalized / growth
	resources := bank + tranShk

	c, share := a.Policy.ConsumptionAndShare(resources, a.TrueBeliefs)
	switch {
	case math.IsNaN(c) || c < 0:
		p.Anomalies.Record(AnomalyConsumptionExceedsResources, a.ID, "c_nrm", c, "m_nrm", resources)
		c = 0
	case c > resources:
		p.Anomalies.Record(AnomalyConsumptionExceedsResources, a.ID, "c_nrm", c, "m_nrm", resources)
		c = math.Max(resources, 0)
	}

	a.Resources = resources
	a.Consumption = c
	a.RiskyShare = p.clampShare(a, share)
	a.AssetsNormalized = resources - c
	if a.AssetsNormalized < 0 {
		p.Anomalies.Record(AnomalyNegativeAssets, a.ID, "a_nrm", a.AssetsNormalized, "during", "macro_update")
		a.AssetsNormalized = 0
	}

	assetShares := a.AssetsLevel() * p.DollarsPerUnit / price
	delta := math.Min(0, assetShares-a.Shares)
	a.Shares += delta
	return delta
}

// lognormalShock draws a mean-one lognormal shock with the given std of the
// underlying normal.
func (p *Population) lognormalShock(std float64) float64 {
	if std <= 0 {
		return 1
	}
	return math.Exp(-std*std/2 + std*p.rng.NormFloat64())
}

// UpdateWealth credits capital gains and dividends on held shares to every
// agent. ror is the price-only return that led to price. An agent driven to
// negative assets is clamped to zero and its shares are liquidated.
func (p *Population) UpdateWealth(price, ror, dividend float64) {
	oldPrice := price / (1 + ror)
	for _, a := range p.Agents {
		if a.Shares < 0 {
			p.Anomalies.Record(AnomalyNegativeShares, a.ID, "shares", a.Shares)
			a.Shares = 0
		}

		gain := a.Shares * (price - oldPrice + dividend)
		a.AssetsNormalized += gain / (p.DollarsPerUnit * a.PermanentIncome)

		if a.AssetsNormalized < 0 || math.IsNaN(a.AssetsNormalized) {
			p.Anomalies.Record(AnomalyNegativeAssets, a.ID,
				"a_nrm", a.AssetsNormalized, "shares", a.Shares, "p_lvl", a.PermanentIncome,
				"dividend", dividend, "ror", ror)
			a.AssetsNormalized = 0
			a.Shares = 0
		}
	}
}

// TotalAssets returns the population's assets in dollars.
func (p *Population) TotalAssets() float64 {
	total := 0.0
	for _, a := range p.Agents {
		total += a.AssetsLevel()
	}
	return total * p.DollarsPerUnit
}

// TotalShares returns the shares held across the population.
func (p *Population) TotalShares() float64 {
	total := 0.0
	for _, a := range p.Agents {
		total += a.Shares
	}
	return total
}

// MeanIncome returns mean permanent income in dollars.
func (p *Population) MeanIncome() float64 {
	if len(p.Agents) == 0 {
		return 0
	}
	total := 0.0
	for _, a := range p.Agents {
		total += a.PermanentIncome
	}
	return total / float64(len(p.Agents)) * p.DollarsPerUnit
}

// Consumption returns the dollars consumed by agents whose macro day is day.
func (p *Population) Consumption(day int) float64 {
	total := 0.0
	for _, a := range p.Agents {
		if a.MacroDay == day {
			total += a.Consumption * a.PermanentIncome
		}
	}
	return total * p.DollarsPerUnit
}

// ClassStat summarizes one parameter class.
type ClassStat struct {
	Class      string  `json:"class"`
	Count      int     `json:"count"`
	AssetsMean float64 `json:"a_lvl_mean"`
	AssetsStd  float64 `json:"a_lvl_std"`
	SharesMean float64 `json:"shares_mean"`
}

// ClassStats groups agents by class label, sorted by label.
func (p *Population) ClassStats() []ClassStat {
	assets := make(map[string][]float64)
	shares := make(map[string][]float64)
	for _, a := range p.Agents {
		assets[a.Class] = append(assets[a.Class], a.AssetsLevel()*p.DollarsPerUnit)
		shares[a.Class] = append(shares[a.Class], a.Shares)
	}

	labels := make([]string, 0, len(assets))
	for label := range assets {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make([]ClassStat, 0, len(labels))
	for _, label := range labels {
		out = append(out, ClassStat{
			Class:      label,
			Count:      len(assets[label]),
			AssetsMean: stats.Mean(assets[label]),
			AssetsStd:  stats.Std(assets[label]),
			SharesMean: stats.Mean(shares[label]),
		})
	}
	return out
}
