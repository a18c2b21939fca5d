package config

import (
	"github.com/bagtoad/tagcluster/internal/cluster"
	"github.com/bagtoad/tagcluster/internal/llm"
	"github.com/bagtoad/tagcluster/internal/naming"
	"github.com/bagtoad/tagcluster/internal/tags"
)

const (
	defaultLLMTimeoutSeconds = 60
	defaultLogFormat         = "auto"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Clustering: Clustering{
			Algorithm:     string(cluster.DefaultAlgorithm),
			Restarts:      cluster.DefaultRestarts,
			MaxIterations: cluster.DefaultMaxIterations,
			OPTICSMaxEps:  cluster.DefaultOPTICSMaxEps,
		},
		Naming: Naming{
			Mode:         string(naming.ModeAuto),
			MaxNamed:     naming.DefaultMaxNamed,
			SampleImages: naming.DefaultSampleImages,
		},
		Axes: Axes{
			DirMode: string(tags.Costume),
		},
		LLM: LLM{
			Model:          llm.DefaultModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  llm.DefaultAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
