package kis

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

const (
	// LiveBaseURL is the production open API domain.
	LiveBaseURL = "https://openapi.koreainvestment.com:9443"
	// PaperBaseURL is the virtual trading domain.
	PaperBaseURL = "https://openapivts.koreainvestment.com:29443"

	defaultTimeout       = 30 * time.Second
	defaultRetryCount    = 3
	defaultRetryWait     = 500 * time.Millisecond
	defaultRetryMaxWait  = 5 * time.Second
	defaultAccountSuffix = "01"
)

// Config contains the credentials and account of a KIS open API app.
type Config struct {
	BaseURL        string        `yaml:"base_url" json:"base_url" jsonschema:"title=Base URL,description=Open API domain including port" validate:"required,url"`
	AppKey         string        `yaml:"app_key" json:"app_key" jsonschema:"title=App Key,description=Open API app key" validate:"required"`
	AppSecret      string        `yaml:"app_secret" json:"app_secret" jsonschema:"title=App Secret,description=Open API app secret" validate:"required"`
	AccountNumber  string        `yaml:"account_number" json:"account_number" jsonschema:"title=Account Number,description=First 8 digits of the account (CANO)" validate:"required,len=8,numeric"`
	AccountProduct string        `yaml:"account_product" json:"account_product" jsonschema:"title=Account Product Code,description=Last 2 digits of the account,default=01" validate:"required,len=2,numeric"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout" jsonschema:"title=Timeout,description=Per-request timeout"`
	RetryCount     int           `yaml:"retry_count" json:"retry_count" jsonschema:"title=Retry Count,description=Retries for rate-limited or failed queries,default=3" validate:"gte=0,lte=10"`
	// Paper switches order transaction ids to the virtual trading variants.
	Paper bool `yaml:"paper" json:"paper" jsonschema:"title=Paper Trading,description=Use virtual trading transaction ids"`
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid kis config", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.AccountProduct == "" {
		c.AccountProduct = defaultAccountSuffix
	}

	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	if c.RetryCount == 0 {
		c.RetryCount = defaultRetryCount
	}
}
