// Package volume integrates the per-pixel height between the bowl's
// interior surface and the food surface into a volume estimate, per
// spec.md §4.E.
package volume

import (
	"context"
	"runtime"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bowlscan/core/raycast"
	"github.com/bowlscan/core/transform"
)

// Config carries the depth-validity window shared with BackProject;
// spec.md §6 does not introduce any VolumeIntegrate-specific option
// beyond it.
type Config struct {
	MinValidDepthMM float64
	MaxValidDepthMM float64
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{MinValidDepthMM: 70, MaxValidDepthMM: 500}
}

// Result is the VolumeResult diagnostics bundle spec.md §4.E names.
type Result struct {
	VolumeML     float64
	NFoodPixels  int
	NValidPixels int
	ValidRatio   float64
	MeanHeightMM float64
	MaxHeightMM  float64
	StdHeightMM  float64
}

// rowBand is one worker's deterministic, index-ordered slice of the
// contributions and retained heights it found in its row range.
type rowBand struct {
	start         int
	contributions []float64 // mm^3, one per retained pixel, in pixel-index order
	heights       []float64 // mm, one per retained pixel, in pixel-index order
}

// Integrate sums the per-pixel height×footprint contribution over every
// food-mask pixel whose depth is valid and whose bowl ray hit, per
// spec.md §4.E's five-step per-pixel formula:
//  1. skip if depth invalid or ray missed
//  2. food_mm = raw_depth * depthScaleMPerUnit * 1000
//  3. bowl_mm = raycast hit distance
//  4. h_mm = bowl_mm - food_mm; skip if <= 0
//  5. footprint_mm2 = food_mm^2 / (fx*fy); contribution = h_mm * footprint_mm2
//
// Work is partitioned over row bands with golang.org/x/sync/errgroup; each
// band accumulates its own ordered slice of retained contributions, and
// bands are summed back together in row-index order (not goroutine
// completion order) so the total is deterministic given the input and
// thread count, satisfying spec.md §5 and Testable Property 9.
func Integrate(ctx context.Context, depth *transform.DepthImage, mask *transform.FoodMask, intr transform.Intrinsics, depthScaleMPerUnit float64, rc raycast.Result, cfg Config) (Result, error) {
	if depth == nil {
		return Result{}, errors.New("volume: depth image is nil")
	}
	if mask == nil {
		return Result{}, errors.New("volume: food mask is nil")
	}
	if !mask.SameShape(depth) {
		return Result{}, errors.New("volume: food mask shape does not match depth image")
	}
	if mask.Width != intr.Width || mask.Height != intr.Height {
		return Result{}, errors.Errorf("volume: mask %dx%d does not match intrinsics %dx%d",
			mask.Width, mask.Height, intr.Width, intr.Height)
	}
	if rc.Width != mask.Width || rc.Height != mask.Height {
		return Result{}, errors.Errorf("volume: raycast result %dx%d does not match mask %dx%d",
			rc.Width, rc.Height, mask.Width, mask.Height)
	}
	if intr.Fx <= 0 || intr.Fy <= 0 {
		return Result{}, errors.New("volume: fx/fy must be positive")
	}
	if depthScaleMPerUnit <= 0 {
		return Result{}, errors.Errorf("volume: depth_scale_m_per_unit must be > 0, got %v", depthScaleMPerUnit)
	}

	nFoodPixels := 0
	for _, v := range mask.Pix {
		if v {
			nFoodPixels++
		}
	}
	if nFoodPixels == 0 {
		return Result{NFoodPixels: 0, NValidPixels: 0, ValidRatio: 0}, nil
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > mask.Height {
		numWorkers = mask.Height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	bands := make([]rowBand, numWorkers)
	grp, gctx := errgroup.WithContext(ctx)
	rowsPerWorker := (mask.Height + numWorkers - 1) / numWorkers
	for w := 0; w < numWorkers; w++ {
		w := w
		vStart := w * rowsPerWorker
		vEnd := vStart + rowsPerWorker
		if vEnd > mask.Height {
			vEnd = mask.Height
		}
		bands[w].start = vStart
		if vStart >= vEnd {
			continue
		}
		grp.Go(func() error {
			var contributions, heights []float64
			for v := vStart; v < vEnd; v++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				for u := 0; u < mask.Width; u++ {
					idx := v*mask.Width + u
					if !mask.Pix[idx] {
						continue
					}
					if !rc.Pixels[idx].Hit {
						continue
					}
					rawDepth := depth.Pix[idx]
					if rawDepth == 0 {
						continue
					}
					foodMM := float64(rawDepth) * depthScaleMPerUnit * 1000
					if foodMM < cfg.MinValidDepthMM || foodMM > cfg.MaxValidDepthMM {
						continue
					}
					bowlMM := rc.Pixels[idx].BowlDistanceMM
					hMM := bowlMM - foodMM
					if hMM <= 0 {
						continue
					}
					footprintMM2 := foodMM * foodMM / (intr.Fx * intr.Fy)
					contributions = append(contributions, hMM*footprintMM2)
					heights = append(heights, hMM)
				}
			}
			bands[w].contributions = contributions
			bands[w].heights = heights
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return Result{}, errors.Wrap(err, "volume")
	}

	var volumeMM3 float64
	var allHeights []float64
	nValidPixels := 0
	for _, b := range bands {
		for _, c := range b.contributions {
			volumeMM3 += c
		}
		allHeights = append(allHeights, b.heights...)
		nValidPixels += len(b.heights)
	}

	result := Result{
		VolumeML:     volumeMM3 / 1000,
		NFoodPixels:  nFoodPixels,
		NValidPixels: nValidPixels,
		ValidRatio:   float64(nValidPixels) / float64(nFoodPixels),
	}
	if nValidPixels == 0 {
		return result, nil
	}

	meanMM, err := stats.Mean(allHeights)
	if err != nil {
		return Result{}, errors.Wrap(err, "volume: computing mean height")
	}
	maxMM, err := stats.Max(allHeights)
	if err != nil {
		return Result{}, errors.Wrap(err, "volume: computing max height")
	}
	stdMM, err := stats.StandardDeviation(allHeights)
	if err != nil {
		return Result{}, errors.Wrap(err, "volume: computing height std-dev")
	}
	result.MeanHeightMM = meanMM
	result.MaxHeightMM = maxMM
	result.StdHeightMM = stdMM
	return result, nil
}
