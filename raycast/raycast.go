// Package raycast casts one camera ray per food-mask pixel against the
// fitted bowl mesh's BVH to find the distance to the interior bowl
// surface directly behind the food, per spec.md §4.D.
package raycast

import (
	"context"
	"runtime"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bowlscan/core/bvh"
	"github.com/bowlscan/core/transform"
)

// Config carries spec.md §6's ray_epsilon option.
type Config struct {
	RayEpsilon float64
}

// DefaultConfig returns spec.md §6's documented default.
func DefaultConfig() Config {
	return Config{RayEpsilon: 1e-6}
}

// PixelResult is the per-pixel outcome spec.md §3 names RaycastResult.
type PixelResult struct {
	Hit            bool
	BowlDistanceMM float64
}

// Result is the per-pixel raycast outcome for every pixel in the food
// mask, row-major, same shape as the mask.
type Result struct {
	Width, Height int
	Pixels        []PixelResult
	NHits         int
}

// Cast fires one ray per food-mask pixel through tree, per spec.md §4.D's
// ray construction (direction (u-cx)/fx, (v-cy)/fy, 1, normalized;
// origin at the camera centre). Work is partitioned over row bands with
// golang.org/x/sync/errgroup and reduced back into row-major order
// regardless of goroutine completion order, satisfying spec.md §5's
// determinism requirement; ctx is checked once per row band.
func Cast(ctx context.Context, tree *bvh.Tree, intr transform.Intrinsics, mask *transform.FoodMask, cfg Config) (Result, error) {
	if tree == nil {
		return Result{}, errors.New("raycast: bvh tree is nil")
	}
	if mask == nil {
		return Result{}, errors.New("raycast: food mask is nil")
	}
	if mask.Width != intr.Width || mask.Height != intr.Height {
		return Result{}, errors.Errorf("raycast: food mask %dx%d does not match intrinsics %dx%d",
			mask.Width, mask.Height, intr.Width, intr.Height)
	}

	n := mask.Width * mask.Height
	pixels := make([]PixelResult, n)

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > mask.Height {
		numWorkers = mask.Height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	grp, gctx := errgroup.WithContext(ctx)
	rowsPerWorker := (mask.Height + numWorkers - 1) / numWorkers
	origin := r3.Vector{}
	var nHitsPerWorker = make([]int, numWorkers)

	for w := 0; w < numWorkers; w++ {
		w := w
		vStart := w * rowsPerWorker
		vEnd := vStart + rowsPerWorker
		if vEnd > mask.Height {
			vEnd = mask.Height
		}
		if vStart >= vEnd {
			continue
		}
		grp.Go(func() error {
			localHits := 0
			for v := vStart; v < vEnd; v++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				for u := 0; u < mask.Width; u++ {
					idx := v*mask.Width + u
					if !mask.Pix[idx] {
						continue
					}
					dir := r3.Vector{
						X: (float64(u) - intr.Cx) / intr.Fx,
						Y: (float64(v) - intr.Cy) / intr.Fy,
						Z: 1,
					}.Normalize()
					hit, ok := tree.Intersect(origin, dir, cfg.RayEpsilon)
					if ok {
						pixels[idx] = PixelResult{Hit: true, BowlDistanceMM: hit.TMM}
						localHits++
					}
				}
			}
			nHitsPerWorker[w] = localHits
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return Result{}, errors.Wrap(err, "raycast")
	}

	total := 0
	for _, h := range nHitsPerWorker {
		total += h
	}

	return Result{Width: mask.Width, Height: mask.Height, Pixels: pixels, NHits: total}, nil
}
