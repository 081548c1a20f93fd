package main

import (
	"strings"
	"sync"

	"mediaindex/internal/config"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string
	tokenFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, apiFlag, tokenFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
		tokenFlag:  tokenFlag,
	}
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, _, _, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// client resolves the API address and token from flags first and the
// configuration second. A missing or invalid configuration is not fatal when
// the address is supplied on the command line.
func (c *commandContext) client() *apiClient {
	base := strings.TrimSpace(*c.apiFlag)
	token := strings.TrimSpace(*c.tokenFlag)
	if base == "" || token == "" {
		if cfg, err := c.loadConfig(); err == nil {
			if base == "" {
				base = cfg.Paths.APIBind
			}
			if token == "" {
				token = cfg.Paths.APIToken
			}
		}
	}
	if base == "" {
		base = "127.0.0.1:8781"
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return newAPIClient(base, token)
}
