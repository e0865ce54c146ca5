package title

import "github.com/pkg/errors"

// Config holds the options shared by every filter stage. It is passed by
// value and never modified by the pipeline.
type Config struct {
	Multiline bool `mapstructure:"multiline"`
	TopMargin int  `mapstructure:"top_margin"`
	MinLength int  `mapstructure:"min_length"`
	MaxLength int  `mapstructure:"max_length"`
}

func DefaultConfig() Config {
	return Config{
		Multiline: false,
		TopMargin: 70,
		MinLength: 15,
		MaxLength: 250,
	}
}

func (c Config) Validate() error {
	switch {
	case c.TopMargin <= 0:
		return errors.Errorf("top_margin must be positive, got %d", c.TopMargin)
	case c.MinLength <= 0:
		return errors.Errorf("min_length must be positive, got %d", c.MinLength)
	case c.MaxLength <= 0:
		return errors.Errorf("max_length must be positive, got %d", c.MaxLength)
	case c.MinLength > c.MaxLength:
		return errors.Errorf("min_length %d exceeds max_length %d", c.MinLength, c.MaxLength)
	}
	return nil
}
