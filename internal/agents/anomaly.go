package agents

import (
	"log/slog"
)

// AnomalyKind classifies a recovered state anomaly.
type AnomalyKind uint8

const (
	AnomalyNegativeShareTarget AnomalyKind = iota
	AnomalyNaNShareTarget
	AnomalyShareBelowZero
	AnomalyShareAboveOne
	AnomalyNegativeAssets
	AnomalyNegativeShares
	AnomalyConsumptionExceedsResources
	AnomalyNonPositiveGrowth
	numAnomalyKinds
)

var anomalyNames = [numAnomalyKinds]string{
	"negative_share_target",
	"nan_share_target",
	"share_below_zero",
	"share_above_one",
	"negative_assets",
	"negative_shares",
	"consumption_exceeds_resources",
	"non_positive_growth",
}

func (k AnomalyKind) String() string {
	if k < numAnomalyKinds {
		return anomalyNames[k]
	}
	return "unknown"
}

// AnomalyLog counts anomalies by kind and reports each one to the logger.
// Anomalies are clamped by the caller; the run continues.
type AnomalyLog struct {
	counts [numAnomalyKinds]int
	log    *slog.Logger

	// OnAnomaly, if set, is called after each anomaly is recorded.
	OnAnomaly func(kind AnomalyKind)
}

// NewAnomalyLog creates a log that writes diagnostics to logger.
func NewAnomalyLog(logger *slog.Logger) *AnomalyLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnomalyLog{log: logger}
}

// Record counts one anomaly for an agent.
func (l *AnomalyLog) Record(kind AnomalyKind, id AgentID, attrs ...any) {
	l.counts[kind]++
	l.log.Warn("state anomaly clamped",
		append([]any{"kind", kind.String(), "agent", id}, attrs...)...)
	if l.OnAnomaly != nil {
		l.OnAnomaly(kind)
	}
}

// Count returns how many anomalies of kind were recorded.
func (l *AnomalyLog) Count(kind AnomalyKind) int { return l.counts[kind] }

// Total returns the number of anomalies of any kind.
func (l *AnomalyLog) Total() int {
	n := 0
	for _, c := range l.counts {
		n += c
	}
	return n
}

// Counts returns the non-zero counts keyed by kind name.
func (l *AnomalyLog) Counts() map[string]int {
	out := make(map[string]int)
	for k, c := range l.counts {
		if c > 0 {
			out[AnomalyKind(k).String()] = c
		}
	}
	return out
}
