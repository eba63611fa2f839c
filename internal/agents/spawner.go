// Agent spawning: builds the initial population from parameter classes and
// assigns each agent its macro day.
package agents

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/talgya/shark-market/internal/expectations"
)

// ClassSpec describes one homogeneous group of agents.
type ClassSpec struct {
	Label  string     `yaml:"label" json:"label" validate:"required"`
	Count  int        `yaml:"count" json:"count" validate:"gte=1"`
	Policy PolicySpec `yaml:"policy" json:"policy" default:"{\"kind\":\"merton\",\"crra\":5,\"mpc\":0.05}"`

	AssetsNormalized float64 `yaml:"a_nrm" json:"a_nrm" default:"5" validate:"gte=0"`
	AssetsSpread     float64 `yaml:"a_nrm_spread" json:"a_nrm_spread" validate:"gte=0"` // Std of a lognormal multiplier on a_nrm
	PermanentIncome  float64 `yaml:"p_lvl" json:"p_lvl" default:"1" validate:"gt=0"`

	PermGroFac float64 `yaml:"perm_gro_fac" json:"perm_gro_fac" default:"1.0" validate:"gt=0"`
	PermShkStd float64 `yaml:"perm_shk_std" json:"perm_shk_std" validate:"gte=0"`
	TranShkStd float64 `yaml:"tran_shk_std" json:"tran_shk_std" validate:"gte=0"`
	Rfree      float64 `yaml:"rfree" json:"rfree" default:"1.0" validate:"gt=0"`
}

// UnmarshalYAML fills the tag defaults before decoding, so keys the file
// omits take their default and keys it sets to zero stay zero.
func (c *ClassSpec) UnmarshalYAML(n *yaml.Node) error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("class defaults: %w", err)
	}
	type plain ClassSpec
	return n.Decode((*plain)(c))
}

// DefaultClass is a single Merton class with riskless return 1.
func DefaultClass() ClassSpec {
	return ClassSpec{
		Label:            "merton",
		Count:            100,
		Policy:           PolicySpec{Kind: PolicyMerton, CRRA: 5, MPC: 0.05},
		AssetsNormalized: 5,
		AssetsSpread:     0.2,
		PermanentIncome:  1,
		PermGroFac:       1.0,
		PermShkStd:       0.05,
		TranShkStd:       0.1,
		Rfree:            1.0,
	}
}

// Spawner creates agents for the simulation.
type Spawner struct {
	rng            *rand.Rand
	nextID         AgentID
	daysPerQuarter int
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64, daysPerQuarter int) *Spawner {
	return &Spawner{
		rng:            rand.New(rand.NewSource(seed + 300)),
		nextID:         1,
		daysPerQuarter: daysPerQuarter,
	}
}

// SetNextID sets the next agent ID to be issued.
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// Spawn builds every class in order. All agents start with the prior
// beliefs as both their acting and true beliefs.
func (s *Spawner) Spawn(classes []ClassSpec, prior expectations.Beliefs) ([]*Agent, error) {
	var out []*Agent
	for _, c := range classes {
		batch, err := s.SpawnClass(c, prior)
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", c.Label, err)
		}
		out = append(out, batch...)
	}
	return out, nil
}

// SpawnClass builds Count agents from one class.
func (s *Spawner) SpawnClass(c ClassSpec, prior expectations.Beliefs) ([]*Agent, error) {
	policy, err := c.Policy.Build(c.Rfree)
	if err != nil {
		return nil, err
	}
	if c.PermanentIncome <= 0 {
		return nil, fmt.Errorf("permanent income must be positive, got %v", c.PermanentIncome)
	}

	agents := make([]*Agent, 0, c.Count)
	for i := 0; i < c.Count; i++ {
		agents = append(agents, s.spawnOne(c, policy, prior))
	}
	return agents, nil
}

func (s *Spawner) spawnOne(c ClassSpec, policy Policy, prior expectations.Beliefs) *Agent {
	id := s.nextID
	s.nextID++

	aNrm := c.AssetsNormalized
	if c.AssetsSpread > 0 {
		sd := c.AssetsSpread
		aNrm *= math.Exp(-sd*sd/2 + sd*s.rng.NormFloat64())
	}

	macroDay := 0
	if s.daysPerQuarter > 0 {
		macroDay = s.rng.Intn(s.daysPerQuarter)
	}

	return &Agent{
		ID:               id,
		Class:            c.Label,
		AssetsNormalized: aNrm,
		PermanentIncome:  c.PermanentIncome,
		Beliefs:          prior,
		TrueBeliefs:      prior,
		Income: IncomeProcess{
			PermGroFac: c.PermGroFac,
			PermShkStd: c.PermShkStd,
			TranShkStd: c.TranShkStd,
			Rfree:      c.Rfree,
		},
		MacroDay: macroDay,
		Policy:   policy,
	}
}
