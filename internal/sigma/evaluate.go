package sigma

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Shift is the conventional 1.5-sigma adjustment that accounts for
// long-term process drift. The sigma level is the probit of the yield
// plus this shift.
const Shift = 1.5

// Settings holds the classification parameters. The struct is treated as
// immutable once an Evaluator is built from it.
type Settings struct {
	// RedYellow is the lower bound of the YELLOW band. Sigma levels below
	// it classify as RED; the boundary itself belongs to YELLOW.
	RedYellow float64
	// YellowGreen is the lower bound of the GREEN band.
	YellowGreen float64
	// MaxSigma caps the sigma level when the defect rate is 0 (or too
	// small to be distinguishable from 0 in float64). Beyond a probit of
	// about 8.2 the corresponding defect rate is below 1e-16, so the
	// default of 10 is unreachable by any distinguishable rate.
	MaxSigma float64
	// MinSigma floors the sigma level when the defect rate is 1.
	MinSigma float64
	// DefaultName is assigned to processes submitted without a name.
	DefaultName string
}

// DefaultSettings returns the standard Six Sigma tiering: RED below 2.1,
// YELLOW in [2.1, 4.1), GREEN at 4.1 and above.
func DefaultSettings() Settings {
	return Settings{
		RedYellow:   2.1,
		YellowGreen: 4.1,
		MaxSigma:    10,
		MinSigma:    -10,
		DefaultName: "process",
	}
}

// Evaluator converts trial counts into defect rates, sigma levels and
// quality tiers. It is stateless and safe for concurrent use.
type Evaluator struct {
	settings Settings
	dist     distuv.Normal
}

// NewEvaluator builds an Evaluator over a normal distribution shifted by
// the long-term drift, so dist.Quantile(1 - rate) yields the sigma level
// directly.
func NewEvaluator(settings Settings) *Evaluator {
	return &Evaluator{
		settings: settings,
		dist:     distuv.Normal{Mu: Shift, Sigma: 1},
	}
}

// Settings returns the evaluator's classification parameters.
func (e *Evaluator) Settings() Settings {
	return e.settings
}

// Evaluate validates a single process and computes its result.
//
// Zero tests is not an error: with no trials there are no observed
// failures, so the defect rate is 0 and the sigma level is the configured
// ceiling.
func (e *Evaluator) Evaluate(p Process) (Result, error) {
	if p.Tests < 0 {
		return Result{}, newValidationError("tests", "must not be negative, got %d", p.Tests)
	}
	if p.Fails < 0 {
		return Result{}, newValidationError("fails", "must not be negative, got %d", p.Fails)
	}
	if p.Fails > p.Tests {
		return Result{}, newValidationError("fails", "%d fails exceed %d tests", p.Fails, p.Tests)
	}

	name := p.Name
	if name == "" {
		name = e.settings.DefaultName
	}

	var rate float64
	if p.Tests > 0 {
		rate = float64(p.Fails) / float64(p.Tests)
	}

	level := e.sigmaLevel(rate)
	return Result{
		Tests:      int64(p.Tests),
		Fails:      int64(p.Fails),
		Name:       name,
		DefectRate: rate,
		Sigma:      level,
		Label:      e.classify(level),
	}, nil
}

// EvaluateAll evaluates processes independently, preserving input order.
// The first invalid process aborts the batch.
func (e *Evaluator) EvaluateAll(processes []Process) ([]Result, error) {
	results := make([]Result, 0, len(processes))
	for i, p := range processes {
		r, err := e.Evaluate(p)
		if err != nil {
			return nil, fmt.Errorf("process %d: %w", i, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// sigmaLevel is the probit of the yield plus the long-term shift, clamped
// to the configured bounds. The quantile is infinite at rates of exactly
// 0 or 1 (and at rates small enough that 1-rate rounds to 1), and
// non-finite values are neither serializable nor comparable.
func (e *Evaluator) sigmaLevel(rate float64) float64 {
	if rate <= 0 {
		return e.settings.MaxSigma
	}
	if rate >= 1 {
		return e.settings.MinSigma
	}
	s := e.dist.Quantile(1 - rate)
	switch {
	case math.IsInf(s, 1) || s > e.settings.MaxSigma:
		return e.settings.MaxSigma
	case math.IsInf(s, -1) || s < e.settings.MinSigma:
		return e.settings.MinSigma
	}
	return s
}

// classify assigns the quality tier. Band boundaries belong to the upper
// band: exactly RedYellow is YELLOW, exactly YellowGreen is GREEN.
func (e *Evaluator) classify(sigma float64) Label {
	switch {
	case sigma < e.settings.RedYellow:
		return LabelRed
	case sigma < e.settings.YellowGreen:
		return LabelYellow
	default:
		return LabelGreen
	}
}
