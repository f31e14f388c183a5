package governance

import (
	"fmt"
	"math"

	"eb-evaluation-lab/internal/metrics"
)

// DQC classes: is realized demand something a point forecast can be scored against.
const (
	DQCContinuous   = "CONTINUOUS"
	DQCQuantized    = "QUANTIZED" // every realized value is a whole multiple of Granularity
	DQCIncompatible = "INCOMPATIBLE"
)

// FPC classes: is a point forecast a usable primitive for this demand.
const (
	FPCCompatible   = "COMPATIBLE"
	FPCMarginal     = "MARGINAL"
	FPCIncompatible = "INCOMPATIBLE"
)

// Thresholds for the structural checks. Only INCOMPATIBLE classes block admission.
type Thresholds struct {
	// DQC
	MinObserved     int     // realized intervals needed to judge demand
	MaxZeroFraction float64 // above this share of zero demand, demand is too intermittent

	// FPC
	MinNSL          float64 // below this no-shortfall level the forecast almost never covers demand
	MarginalHitRate float64 // HR@τ below this is MARGINAL
	CostRatio       float64 // cu/co used for the CWSL signal
}

// DefaultThresholds returns the conservative demo thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinObserved:     1,
		MaxZeroFraction: 0.95,
		MinNSL:          0.05,
		MarginalHitRate: 0.50,
		CostRatio:       2,
	}
}

// DQCResult classifies realized demand of one series.
type DQCResult struct {
	Class        string
	Observed     int
	ZeroFraction float64
	Granularity  float64 // 0 unless QUANTIZED
	Reasons      []string
}

// ClassifyDQC classifies realized demand. NaN values are unknown and ignored.
func ClassifyDQC(actuals []float64, t Thresholds) DQCResult {
	var (
		observed, zeros int
		integral        = true
		step            int64
	)
	for _, v := range actuals {
		if math.IsNaN(v) {
			continue
		}
		observed++
		if v == 0 {
			zeros++
			continue
		}
		r := math.Round(v)
		if math.Abs(v-r) > 1e-9 || math.Abs(r) > 1<<53 {
			integral = false
			continue
		}
		step = gcd(step, int64(math.Abs(r)))
	}

	res := DQCResult{Observed: observed}
	if observed < t.MinObserved || observed == 0 {
		res.Class = DQCIncompatible
		res.Reasons = append(res.Reasons, fmt.Sprintf("only %d realized intervals (need %d)", observed, t.MinObserved))
		return res
	}
	res.ZeroFraction = float64(zeros) / float64(observed)
	if res.ZeroFraction > t.MaxZeroFraction {
		res.Class = DQCIncompatible
		res.Reasons = append(res.Reasons, fmt.Sprintf("zero demand in %.2f of intervals (max %.2f)", res.ZeroFraction, t.MaxZeroFraction))
		return res
	}
	if integral && step > 0 {
		res.Class = DQCQuantized
		res.Granularity = float64(step)
		return res
	}
	res.Class = DQCContinuous
	return res
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// FPCSignals are the service signals FPC is judged on.
type FPCSignals struct {
	Intervals          int
	ShortfallIntervals int
	NSL                float64
	HitRate            float64 // HR@τ
	UD                 float64
	CWSL               float64 // cost-weighted shortfall over total demand, 0 without demand
	MeanActual         float64
}

// FPCResult classifies one aligned candidate.
type FPCResult struct {
	Class   string
	Signals FPCSignals
	Reasons []string
}

// ClassifyFPC classifies a candidate from its service diagnostics.
func ClassifyFPC(a *metrics.Alignment, tau float64, t Thresholds) FPCResult {
	d := metrics.Diagnose(a, tau)
	p := a.Profile()

	sig := FPCSignals{
		Intervals:          d.Count,
		ShortfallIntervals: p.ShortfallCount,
		NSL:                d.NSL,
		HitRate:            d.HitRate,
		UD:                 d.UD,
	}
	if d.Count > 0 {
		sig.MeanActual = p.ActualSum / float64(d.Count)
	}
	if p.ActualSum > 0 {
		sig.CWSL = (t.CostRatio*p.Shortfall + p.Overbuild) / p.ActualSum
	}

	res := FPCResult{Class: FPCCompatible, Signals: sig}
	if sig.NSL < t.MinNSL {
		res.Class = FPCIncompatible
		res.Reasons = append(res.Reasons, fmt.Sprintf("NSL %.4f below %.2f", sig.NSL, t.MinNSL))
	}
	// No better than forecasting zero on shortfall
	if sig.MeanActual > 0 && sig.UD >= sig.MeanActual {
		res.Class = FPCIncompatible
		res.Reasons = append(res.Reasons, fmt.Sprintf("UD %.4f not below mean demand %.4f", sig.UD, sig.MeanActual))
	}
	if res.Class == FPCCompatible && sig.HitRate < t.MarginalHitRate {
		res.Class = FPCMarginal
		res.Reasons = append(res.Reasons, fmt.Sprintf("HR@%g %.4f below %.2f", tau, sig.HitRate, t.MarginalHitRate))
	}
	return res
}
