package providers

import (
	"github.com/samber/do/v2"

	"github.com/fsintent/fsintent-server/internal/detect"
	"github.com/fsintent/fsintent-server/internal/logger"
)

// ProvideDetectorRegistry provides the detector registry with the built-in
// detectors installed.
func ProvideDetectorRegistry(i do.Injector) (*detect.Registry, error) {
	log := do.MustInvoke[*logger.Logger](i)

	registry := detect.NewRegistry()
	if err := detect.RegisterBuiltins(registry); err != nil {
		return nil, err
	}

	log.Info("Detector registry ready", "detectors", len(registry.All()))
	return registry, nil
}

// ProvideDetectionEngine provides the classification engine.
func ProvideDetectionEngine(i do.Injector) (*detect.Engine, error) {
	log := do.MustInvoke[*logger.Logger](i)
	registry := do.MustInvoke[*detect.Registry](i)

	return detect.NewEngine(registry, log.Logger), nil
}
