package tradingprovider

import (
	"encoding/json"

	"github.com/rxtech-lab/argo-autotrade/internal/kis"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

// parseKISConfig parses a JSON configuration string into a kis.Config.
func parseKISConfig(jsonConfig string, paper bool) (*kis.Config, error) {
	var config kis.Config
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "failed to parse kis config", err)
	}

	config.Paper = paper

	if config.BaseURL == "" {
		config.BaseURL = kis.LiveBaseURL
		if paper {
			config.BaseURL = kis.PaperBaseURL
		}
	}

	if config.AccountProduct == "" {
		config.AccountProduct = "01"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
