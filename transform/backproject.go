package transform

import (
	"context"
	"runtime"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/bowlscan/core/pointcloud"
)

// Config carries the options spec.md §6 lists for BackProject (and the
// other stages that share the depth-validity window).
type Config struct {
	MinValidDepthMM float64
	MaxValidDepthMM float64
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{MinValidDepthMM: 70, MaxValidDepthMM: 500}
}

// Diagnostics reports what BackProject dropped.
type Diagnostics struct {
	NDroppedPixels int
	NValidPixels   int
}

// BackProject maps every valid pixel of depth into a metric point in the
// camera frame (+Z forward, millimetres), per spec.md §4.A. mask, if
// non-nil, additionally restricts back-projection to food pixels; a nil
// mask back-projects the whole image (used by BowlFit, which needs the
// full scene, not just the food region).
func BackProject(ctx context.Context, intr Intrinsics, depth *DepthImage, mask *FoodMask, depthScaleMPerUnit float64, cfg Config) (*pointcloud.PointCloud, Diagnostics, error) {
	if err := intr.Validate(); err != nil {
		return nil, Diagnostics{}, errors.Wrap(err, "back-project")
	}
	if depth == nil {
		return nil, Diagnostics{}, errors.New("back-project: depth image is nil")
	}
	if depth.Width != intr.Width || depth.Height != intr.Height {
		return nil, Diagnostics{}, errors.Errorf("back-project: depth image %dx%d does not match intrinsics %dx%d",
			depth.Width, depth.Height, intr.Width, intr.Height)
	}
	if mask != nil && !mask.SameShape(depth) {
		return nil, Diagnostics{}, errors.New("back-project: food mask shape does not match depth image")
	}
	if depthScaleMPerUnit <= 0 {
		return nil, Diagnostics{}, errors.Errorf("back-project: depth_scale_m_per_unit must be > 0, got %v", depthScaleMPerUnit)
	}

	n := depth.Width * depth.Height
	out := make([]r3.Vector, n)
	valid := make([]bool, n)

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > depth.Height {
		numWorkers = depth.Height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	dropped := atomic.NewInt64(0)

	grp, gctx := errgroup.WithContext(ctx)
	rowsPerWorker := (depth.Height + numWorkers - 1) / numWorkers
	for w := 0; w < numWorkers; w++ {
		vStart := w * rowsPerWorker
		vEnd := vStart + rowsPerWorker
		if vEnd > depth.Height {
			vEnd = depth.Height
		}
		if vStart >= vEnd {
			continue
		}
		grp.Go(func() error {
			for v := vStart; v < vEnd; v++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				for u := 0; u < depth.Width; u++ {
					idx := v*depth.Width + u
					if mask != nil && !mask.Pix[idx] {
						continue
					}
					d := depth.Pix[idx]
					if d == 0 {
						dropped.Add(1)
						continue
					}
					zMM := float64(d) * depthScaleMPerUnit * 1000
					if zMM < cfg.MinValidDepthMM || zMM > cfg.MaxValidDepthMM {
						dropped.Add(1)
						continue
					}
					xMM := (float64(u) - intr.Cx) * zMM / intr.Fx
					yMM := (float64(v) - intr.Cy) * zMM / intr.Fy
					out[idx] = r3.Vector{X: xMM, Y: yMM, Z: zMM}
					valid[idx] = true
				}
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, Diagnostics{}, errors.Wrap(err, "back-project")
	}

	pc := pointcloud.New()
	nValid := 0
	for idx := 0; idx < n; idx++ {
		if valid[idx] {
			pc.Set(out[idx], idx) //nolint:errcheck // Set on a coordinate never errors.
			nValid++
		}
	}

	return pc, Diagnostics{NDroppedPixels: int(dropped.Load()), NValidPixels: nValid}, nil
}
