package bootstrap

import (
	"fmt"
	"os"
	"strings"

	appconfig "github.com/wolfman30/barberia-elite/internal/config"
	"github.com/wolfman30/barberia-elite/internal/forms"
	"github.com/wolfman30/barberia-elite/internal/submission"
	"github.com/wolfman30/barberia-elite/pkg/logging"
)

// LoadDefinitions reads FORMS_FILE when set and the embedded definitions
// otherwise.
func LoadDefinitions(cfg *appconfig.Config) (forms.Definitions, error) {
	if cfg == nil || strings.TrimSpace(cfg.FormsFile) == "" {
		return forms.DefaultDefinitions(), nil
	}
	f, err := os.Open(cfg.FormsFile)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open forms file: %w", err)
	}
	defer f.Close()
	defs, err := forms.LoadDefinitions(f)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load %s: %w", cfg.FormsFile, err)
	}
	return defs, nil
}

// BuildForwarder returns the submission forwarder, or nil when forwarding is
// disabled.
func BuildForwarder(cfg *appconfig.Config, observer submission.Observer, logger *logging.Logger) (forms.Forwarder, error) {
	if cfg == nil || !cfg.ForwardSubmissions {
		return nil, nil
	}
	fwd, err := submission.NewForwarder(cfg.ForwardBaseURL, logger, observer)
	if err != nil {
		return nil, err
	}
	return fwd, nil
}
