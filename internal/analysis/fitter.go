package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/maorshutman/lm"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// DefaultMaxIterations is the optimizer iteration budget.
const DefaultMaxIterations = 1000

// badResidual replaces residuals that overflow or hit gamma == 0 so the
// solver rejects the step instead of propagating NaN.
const badResidual = 1e100

// RenderFunc receives the data and fitted curve after a successful fit.
type RenderFunc func(x, yObserved, yFit []float64) error

// Fitter fits the Fano line shape by weighted nonlinear least squares.
// The zero value is usable; NewFitter fills in defaults.
type Fitter struct {
	Bounds        *Bounds // nil: unconstrained
	MaxIterations int
	AbsoluteSigma bool // use yerr as absolute; otherwise scale covariance by reduced chi2
	Render        RenderFunc
	Logger        zerolog.Logger
}

// NewFitter returns an unconstrained Fitter with the default iteration budget.
func NewFitter() *Fitter {
	return &Fitter{
		MaxIterations: DefaultMaxIterations,
		Logger:        zerolog.Nop(),
	}
}

// Fit minimises sum(((y - fano(x; p)) / yerr)^2). A nil yerr weights every
// point with 1. A nil guess is replaced by InitialGuess(x, y).
func (f *Fitter) Fit(x, y, yerr []float64, guess *FanoParameters) (*FitResult, error) {
	if err := checkXY(x, y); err != nil {
		return nil, err
	}
	n := len(x)
	if n < NumFanoParams {
		return nil, invalidInput("need at least %d points, got %d", NumFanoParams, n)
	}
	if err := checkFinite("x", x); err != nil {
		return nil, err
	}
	if err := checkFinite("y", y); err != nil {
		return nil, err
	}
	weights := yerr
	if yerr == nil {
		weights = unitErrors(n)
	} else {
		if len(yerr) != n {
			return nil, invalidInput("yerr has %d points, y has %d", len(yerr), n)
		}
		for i, e := range yerr {
			if !(e > 0) || math.IsInf(e, 0) {
				return nil, invalidInput("yerr[%d] = %v, errors must be positive and finite", i, e)
			}
		}
	}

	bt := boundTransform{b: f.Bounds}
	if err := bt.validate(); err != nil {
		return nil, err
	}

	result := &FitResult{
		NumPoints:        n,
		DegreesOfFreedom: n - NumFanoParams,
		Weighted:         yerr != nil,
		Bounded:          bt.active(),
		Warnings:         make([]string, 0),
	}

	var seed FanoParameters
	if guess != nil {
		seed = *guess
	} else {
		g, err := InitialGuess(x, y)
		if err != nil {
			return nil, fmt.Errorf("initial guess: %w", err)
		}
		seed = g
	}
	if seed.Width == 0 {
		spacing := math.Abs(x[n-1]-x[0]) / float64(n-1)
		if spacing == 0 {
			return nil, invalidInput("x axis has zero extent")
		}
		seed.Width = spacing
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("initial gamma was 0 (no half-maximum span), seeded with sample spacing %g", spacing))
	}

	// Work on a centred axis so relative step tolerances stay meaningful for
	// absolute frequencies around 1e5 GHz.
	shift := floats.Sum(x) / float64(n)
	xc := make([]float64, n)
	for i, v := range x {
		xc[i] = v - shift
	}
	p0 := seed.Vector()
	p0[ParamCenter] -= shift
	if bt.active() {
		// Bounds on the centre are given on the absolute axis.
		centred := *bt.b
		centred.Lower[ParamCenter] -= shift
		centred.Upper[ParamCenter] -= shift
		bt = boundTransform{b: &centred}
	}
	if moved := bt.clamp(p0); len(moved) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("initial guess clamped into bounds for %s", strings.Join(moved, ", ")))
	}
	result.Initial = FanoParametersFromVector(p0)
	result.Initial.Center += shift

	// residuals in external (bounded) parameter space
	extResiduals := func(dst, p []float64) {
		fp := FanoParametersFromVector(p)
		for i := range xc {
			r := (y[i] - fanoAt(xc[i], fp)) / weights[i]
			if math.IsNaN(r) || math.IsInf(r, 0) {
				r = badResidual
			}
			dst[i] = r
		}
	}
	resFunc := func(dst, u []float64) {
		extResiduals(dst, bt.toExternal(u))
	}

	maxIter := f.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	nj := &lm.NumJac{Func: resFunc}
	problem := lm.LMProblem{
		Dim:        NumFanoParams,
		Size:       n,
		Func:       resFunc,
		Jac:        nj.Jac,
		InitParams: bt.toInternal(p0),
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}
	f.Logger.Debug().
		Floats64("seed", result.Initial.Vector()).
		Int("points", n).
		Bool("weighted", result.Weighted).
		Bool("bounded", result.Bounded).
		Msg("starting Fano fit")

	solX, err := solveLM(problem, maxIter)
	if err != nil {
		return nil, err
	}
	pOpt := bt.toExternal(solX)
	for k, v := range pOpt {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: parameter %s diverged to %v", ErrConvergence, ParamNames[k], v)
		}
	}
	if pOpt[ParamWidth] == 0 {
		return nil, fmt.Errorf("%w: width collapsed to zero", ErrConvergence)
	}

	// Final residuals and chi-squared on the centred axis.
	res := make([]float64, n)
	extResiduals(res, pOpt)
	chi2 := floats.Dot(res, res)
	if math.IsNaN(chi2) || math.IsInf(chi2, 0) || floats.HasNaN(res) {
		return nil, fmt.Errorf("%w: residuals are not finite at the solution", ErrConvergence)
	}
	for _, r := range res {
		if r == badResidual {
			return nil, fmt.Errorf("%w: model is singular at the solution", ErrConvergence)
		}
	}

	cov, covWarnings, err := covariance(extResiduals, pOpt, n, chi2, f.AbsoluteSigma)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, covWarnings...)

	// (a, x0, -gamma, -q, offset) describes the same curve; report gamma > 0.
	if !bt.active() && pOpt[ParamWidth] < 0 {
		pOpt[ParamWidth] = -pOpt[ParamWidth]
		pOpt[ParamAsymmetry] = -pOpt[ParamAsymmetry]
		flipSigns(cov, ParamWidth, ParamAsymmetry)
		result.Warnings = append(result.Warnings, "solver converged to negative gamma; reported the equivalent (gamma, q) -> (-gamma, -q)")
	}

	pOpt[ParamCenter] += shift
	result.Params = FanoParametersFromVector(pOpt)
	result.Covariance = cov
	result.ChiSquared = chi2
	result.ReducedChiSquared = ReducedChiSquared(chi2, n, NumFanoParams)

	f.Logger.Debug().
		Floats64("params", pOpt).
		Float64("chi2", chi2).
		Float64("reduced_chi2", result.ReducedChiSquared).
		Msg("Fano fit converged")

	if f.Render != nil {
		yFit, err := EvaluateFano(x, result.Params)
		if err != nil {
			return nil, err
		}
		if err := f.Render(x, y, yFit); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("render hook failed: %v", err))
		}
	}
	return result, nil
}

// solveLM runs the Levenberg-Marquardt solver and maps its outcomes onto
// ErrConvergence: an exhausted iteration budget, a damped normal matrix the
// solver cannot factor (it panics), or an empty solution.
func solveLM(problem lm.LMProblem, maxIter int) (x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			x, err = nil, fmt.Errorf("%w: solver failed: %v", ErrConvergence, r)
		}
	}()
	sol, err := lm.LM(problem, &lm.Settings{Iterations: maxIter, ObjectiveTol: 1e-16})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConvergence, err)
	}
	if sol.Status == optimize.IterationLimit {
		return nil, fmt.Errorf("%w: iteration limit %d reached", ErrConvergence, maxIter)
	}
	if len(sol.X) != problem.Dim {
		return nil, fmt.Errorf("%w: optimizer returned no solution", ErrConvergence)
	}
	return sol.X, nil
}

// covariance estimates the parameter covariance (J^T J)^-1 from a central
// difference Jacobian of the weighted residuals at p. Unless absoluteSigma is
// set it is scaled by chi2 / (n - NumFanoParams), like scipy's curve_fit.
func covariance(residuals func(dst, p []float64), p []float64, n int, chi2 float64, absoluteSigma bool) ([][]float64, []string, error) {
	var warnings []string

	jac := mat.NewDense(n, NumFanoParams, nil)
	fd.Jacobian(jac, residuals, p, &fd.JacobianSettings{Formula: fd.Central})

	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)

	var inv mat.Dense
	if err := inv.Inverse(&jtj); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, nil, numericFault("normal matrix is singular: %v", err)
		}
		warnings = append(warnings, fmt.Sprintf("covariance is ill-conditioned (condition number %.3g)", float64(cond)))
	}

	scale := 1.0
	dof := n - NumFanoParams
	switch {
	case absoluteSigma:
	case dof > 0:
		scale = chi2 / float64(dof)
	default:
		scale = math.Inf(1)
		warnings = append(warnings, "no degrees of freedom left, covariance is undefined")
	}

	cov := make([][]float64, NumFanoParams)
	for i := range cov {
		cov[i] = make([]float64, NumFanoParams)
		for j := range cov[i] {
			cov[i][j] = inv.At(i, j) * scale
		}
	}
	for k := 0; k < NumFanoParams; k++ {
		if cov[k][k] < 0 || math.IsNaN(cov[k][k]) {
			return nil, nil, numericFault("negative variance for %s", ParamNames[k])
		}
	}
	return cov, warnings, nil
}

func flipSigns(cov [][]float64, idx ...int) {
	sign := make([]float64, len(cov))
	for i := range sign {
		sign[i] = 1
	}
	for _, k := range idx {
		sign[k] = -1
	}
	for i := range cov {
		for j := range cov[i] {
			cov[i][j] *= sign[i] * sign[j]
		}
	}
}

func checkFinite(name string, v []float64) error {
	for i, e := range v {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return invalidInput("%s[%d] is not finite", name, i)
		}
	}
	return nil
}
