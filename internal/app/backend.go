package app

import (
	"fmt"

	"github.com/ayusman/judgy/internal/config"
	"github.com/ayusman/judgy/internal/detector"
	"github.com/ayusman/judgy/internal/logger"
)

// newDetector builds the configured backend, falling back to the mock
// detector when the backend cannot be constructed.
func newDetector(dc config.DetectorConfig) detector.Detector {
	d, err := buildBackend(dc)
	if err != nil {
		logger.Warn("app", "%s detector not available (%v), using mock detector", dc.Backend, err)
		return detector.NewMockDetector()
	}
	return d
}

func buildBackend(dc config.DetectorConfig) (detector.Detector, error) {
	switch dc.Backend {
	case config.BackendMock:
		return detector.NewMockDetector(), nil
	case config.BackendHTTP:
		if dc.URL == "" {
			return nil, fmt.Errorf("detector url is required for the http backend")
		}
		return detector.NewHTTPDetector(dc.URL), nil
	case config.BackendSidecar:
		cfg := detector.DefaultConfig()
		cfg.Model = dc.Model
		cfg.Device = dc.Device
		if dc.Script != "" {
			cfg.Command = dc.Python
			if cfg.Command == "" {
				cfg.Command = "python3"
			}
			cfg.Args = []string{dc.Script}
		}
		return detector.NewSidecarDetector(cfg)
	default:
		return nil, fmt.Errorf("unknown detector backend %q", dc.Backend)
	}
}
