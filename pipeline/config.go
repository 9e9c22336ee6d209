package pipeline

import (
	"github.com/bowlscan/core/icp"
	"github.com/bowlscan/core/logging"
	"github.com/bowlscan/core/meshprep"
	"github.com/bowlscan/core/raycast"
	"github.com/bowlscan/core/transform"
	"github.com/bowlscan/core/volume"
)

// Config aggregates every per-stage option spec.md §6's configuration
// table names, plus a Logger the caller may supply to observe stage
// boundaries and ICP diagnostics.
type Config struct {
	MinValidDepthMM        float64
	MaxValidDepthMM        float64
	ICPMaxIterations       int
	ICPDistanceThresholdMM float64
	ICPConvergenceDeltaMM  float64
	ICPPointToPlane        bool
	ICPNormalK             int
	RimPercentile          float64
	RayEpsilon             float64

	// Logger receives stage-transition and diagnostic events. A nil
	// Logger defaults to a production logger (structured JSON) at INFO
	// level.
	Logger logging.Logger
}

// DefaultConfig returns spec.md §6's documented defaults for every
// option.
func DefaultConfig() Config {
	return Config{
		MinValidDepthMM:        70,
		MaxValidDepthMM:        500,
		ICPMaxIterations:       100,
		ICPDistanceThresholdMM: 20,
		ICPConvergenceDeltaMM:  1e-3,
		ICPPointToPlane:        true,
		ICPNormalK:             20,
		RimPercentile:          95,
		RayEpsilon:             1e-6,
	}
}

func (c Config) transformConfig() transform.Config {
	return transform.Config{MinValidDepthMM: c.MinValidDepthMM, MaxValidDepthMM: c.MaxValidDepthMM}
}

func (c Config) meshprepConfig() meshprep.Config {
	return meshprep.Config{RimPercentile: c.RimPercentile}
}

func (c Config) icpConfig() icp.Config {
	return icp.Config{
		MaxIterations:       c.ICPMaxIterations,
		DistanceThresholdMM: c.ICPDistanceThresholdMM,
		ConvergenceDeltaMM:  c.ICPConvergenceDeltaMM,
		PointToPlane:        c.ICPPointToPlane,
		NormalK:             c.ICPNormalK,
	}
}

func (c Config) raycastConfig() raycast.Config {
	return raycast.Config{RayEpsilon: c.RayEpsilon}
}

func (c Config) volumeConfig() volume.Config {
	return volume.Config{MinValidDepthMM: c.MinValidDepthMM, MaxValidDepthMM: c.MaxValidDepthMM}
}

func (c Config) logger() logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.NewLogger("pipeline", logging.INFO)
}
