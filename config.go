package memberauth

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

// SimpleConfig is a plain Config implementation for hosts that do not carry
// their own configuration container.
type SimpleConfig struct {
	TokenExpiration int    `json:"token_expiration"`
	ContextKey      string `json:"context_key"`
	TokenLookup     string `json:"token_lookup"`
	AuthScheme      string `json:"auth_scheme"`
	MetadataKey     string `json:"metadata_key"`
}

var _ Config = (*SimpleConfig)(nil)

// DefaultConfig returns a SimpleConfig with library defaults applied.
func DefaultConfig() *SimpleConfig {
	cfg := &SimpleConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with library defaults.
func (c *SimpleConfig) ApplyDefaults() {
	if c.TokenExpiration == 0 {
		c.TokenExpiration = DefaultTokenExpiration
	}
	if c.ContextKey == "" {
		c.ContextKey = "principal"
	}
	if c.TokenLookup == "" {
		c.TokenLookup = "header:Authorization"
	}
	if c.AuthScheme == "" {
		c.AuthScheme = "Bearer"
	}
	if c.MetadataKey == "" {
		c.MetadataKey = DefaultMetadataKey
	}
}

// Validate checks the configuration before it is handed to the engine or the
// gate middleware.
func (c *SimpleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&c.ContextKey, validation.Required),
		validation.Field(&c.TokenLookup, validation.Required),
		validation.Field(&c.AuthScheme, validation.Required),
		validation.Field(&c.MetadataKey, validation.Required),
	)
}

func (c *SimpleConfig) GetTokenExpiration() int { return c.TokenExpiration }
func (c *SimpleConfig) GetContextKey() string   { return c.ContextKey }
func (c *SimpleConfig) GetTokenLookup() string  { return c.TokenLookup }
func (c *SimpleConfig) GetAuthScheme() string   { return c.AuthScheme }
func (c *SimpleConfig) GetMetadataKey() string  { return c.MetadataKey }
