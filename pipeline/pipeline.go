// Package pipeline orchestrates the five pipeline stages — BackProject,
// MeshPrep, BowlFit, RayCast, VolumeIntegrate — into the single entry
// point spec.md §6 names. The core is a pure function of its inputs: no
// persisted state, no global configuration.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/bowlscan/core/bvh"
	"github.com/bowlscan/core/icp"
	"github.com/bowlscan/core/meshprep"
	"github.com/bowlscan/core/raycast"
	"github.com/bowlscan/core/spatial"
	"github.com/bowlscan/core/transform"
	"github.com/bowlscan/core/volume"
)

// minValidSceneDepthPoints is spec.md §7's InsufficientData threshold,
// shared with icp.minSceneSize.
const minValidSceneDepthPoints = 100

// Request bundles everything a single bowl-volume estimate needs, per
// spec.md §6.
type Request struct {
	Depth              *transform.DepthImage
	FoodMask           *transform.FoodMask
	Intrinsics         transform.Intrinsics
	DepthScaleMPerUnit float64
	BowlMesh           *spatial.Mesh
	BowlRimDiameterMM  float64
	Config             Config

	// TraceID identifies this request in logs. Never consulted by any
	// stage's logic — purely a logging correlation key. A blank TraceID
	// gets a fresh one generated for the duration of Run.
	TraceID string
}

// Result is spec.md §6's output: the VolumeResult plus the fitted 4×4
// transform and any accumulated non-fatal diagnostics.
type Result struct {
	volume.Result

	FittedScaleMM   float64
	FittedPose      spatial.Pose
	FitFitness      float64
	FitRMSEMm       float64
	FitConverged    bool
	FitIterations   int
	FittedRowMajor4 [16]float64

	Diagnostics []*Error
}

// Run executes A→B→C→D→E in order against req and returns the combined
// result. Fatal errors (InvalidInput, InsufficientData, Cancelled) abort
// and are returned directly; non-fatal warnings (FitDidNotConverge,
// RayCastDegenerate) are appended to Result.Diagnostics, folded with
// go.uber.org/multierr into one logged warning, and do not stop volume
// computation.
func Run(ctx context.Context, req Request) (Result, error) {
	log := req.Config.logger()
	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.New().String()
	}

	if err := validateRequest(req); err != nil {
		return Result{}, newError(KindInvalidInput, "validating request", err)
	}

	log.Infow("back-projecting depth image", "trace_id", traceID, "width", req.Intrinsics.Width, "height", req.Intrinsics.Height)
	scene, backProjDiag, err := transform.BackProject(ctx, req.Intrinsics, req.Depth, nil, req.DepthScaleMPerUnit, req.Config.transformConfig())
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, newError(KindCancelled, "back-projecting depth image", err)
		}
		return Result{}, newError(KindInvalidInput, "back-projecting depth image", err)
	}
	if backProjDiag.NValidPixels < minValidSceneDepthPoints {
		return Result{}, newError(KindInsufficientData, "fewer than 100 valid scene points after back-projection", nil)
	}

	log.Infow("canonicalizing bowl mesh", "trace_id", traceID, "rim_percentile", req.Config.RimPercentile)
	canonical, meshDiag, err := meshprep.Canonicalize(req.BowlMesh, req.Config.meshprepConfig())
	if err != nil {
		return Result{}, newError(KindInvalidInput, "canonicalizing bowl mesh", err)
	}

	log.Infow("fitting bowl to scene", "trace_id", traceID, "rim_diameter_model_mm", meshDiag.RimDiameterModelMM, "rim_diameter_true_mm", req.BowlRimDiameterMM)
	fit, err := icp.Register(ctx, scene, canonical, meshDiag.RimDiameterModelMM, req.BowlRimDiameterMM, nil, req.Config.icpConfig())
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, newError(KindCancelled, "fitting bowl to scene", err)
		}
		if errors.Is(err, icp.ErrInsufficientData) {
			return Result{}, newError(KindInsufficientData, "fitting bowl to scene", err)
		}
		return Result{}, newError(KindInvalidInput, "fitting bowl to scene", err)
	}
	log.Infow("bowl fit complete", "trace_id", traceID, "fitness", fit.Fitness, "rmse_mm", fit.RMSEMm, "iterations", fit.Iterations, "converged", fit.Converged)

	var diagnostics []*Error
	if !fit.Converged && fit.Fitness < 0.3 {
		diagnostics = append(diagnostics, newError(KindFitDidNotConverge,
			"ICP reached its iteration cap with fitness below 0.3", nil))
		log.Warnw("bowl fit did not converge", "trace_id", traceID, "fitness", fit.Fitness, "iterations", fit.Iterations)
	}

	fittedMesh := canonical.Scaled(fit.ScaleMM).Transformed(fit.Pose)
	tree := bvh.Build(fittedMesh)

	log.Infow("ray-casting food mask against fitted bowl", "trace_id", traceID)
	rcResult, err := raycast.Cast(ctx, tree, req.Intrinsics, req.FoodMask, req.Config.raycastConfig())
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, newError(KindCancelled, "ray-casting food mask", err)
		}
		return Result{}, newError(KindInvalidInput, "ray-casting food mask", err)
	}
	if rcResult.NHits == 0 {
		diagnostics = append(diagnostics, newError(KindRayCastDegenerate,
			"fitted mesh had a zero hit rate over the food mask", nil))
		log.Warnw("raycast degenerate: zero hits over food mask", "trace_id", traceID)
	}

	log.Infow("integrating volume", "trace_id", traceID)
	volResult, err := volume.Integrate(ctx, req.Depth, req.FoodMask, req.Intrinsics, req.DepthScaleMPerUnit, rcResult, req.Config.volumeConfig())
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, newError(KindCancelled, "integrating volume", err)
		}
		return Result{}, newError(KindInvalidInput, "integrating volume", err)
	}
	log.Infow("volume estimate complete", "trace_id", traceID, "volume_ml", volResult.VolumeML, "valid_ratio", volResult.ValidRatio)

	var diagErr error
	for _, d := range diagnostics {
		diagErr = multierr.Append(diagErr, d)
	}
	if diagErr != nil {
		log.Warnw("pipeline completed with diagnostics", "trace_id", traceID, "diagnostics", diagErr.Error())
	}

	return Result{
		Result:          volResult,
		FittedScaleMM:   fit.ScaleMM,
		FittedPose:      fit.Pose,
		FitFitness:      fit.Fitness,
		FitRMSEMm:       fit.RMSEMm,
		FitConverged:    fit.Converged,
		FitIterations:   fit.Iterations,
		FittedRowMajor4: poseToRowMajor4(fit.Pose),
		Diagnostics:     diagnostics,
	}, nil
}

func validateRequest(req Request) error {
	if req.Depth == nil {
		return errors.New("depth image is nil")
	}
	if req.FoodMask == nil {
		return errors.New("food mask is nil")
	}
	if req.BowlMesh == nil {
		return errors.New("bowl mesh is nil")
	}
	if err := req.Intrinsics.Validate(); err != nil {
		return errors.Wrap(err, "intrinsics")
	}
	if req.DepthScaleMPerUnit <= 0 {
		return errors.Errorf("depth_scale_m_per_unit must be > 0, got %v", req.DepthScaleMPerUnit)
	}
	if req.BowlRimDiameterMM <= 0 {
		return errors.Errorf("bowl_rim_diameter_mm must be > 0, got %v", req.BowlRimDiameterMM)
	}
	if !req.FoodMask.SameShape(req.Depth) {
		return errors.New("food mask shape does not match depth image")
	}
	return nil
}

// poseToRowMajor4 renders pose as the unadorned row-major 4×4 matrix
// spec.md §6 specifies for the debug-serializable fitted transform.
func poseToRowMajor4(pose spatial.Pose) [16]float64 {
	r := pose.Orientation().RotationMatrix()
	t := pose.Point()
	return [16]float64{
		r.At(0, 0), r.At(0, 1), r.At(0, 2), t.X,
		r.At(1, 0), r.At(1, 1), r.At(1, 2), t.Y,
		r.At(2, 0), r.At(2, 1), r.At(2, 2), t.Z,
		0, 0, 0, 1,
	}
}
