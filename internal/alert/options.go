package alert

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions marks a caller error in generation options.
var ErrInvalidOptions = errors.New("invalid generation options")

// ErrPersist marks an alert that could not be stored, not even as fallback copy.
var ErrPersist = errors.New("alert persistence failed")

// Tone steers the voice of generated copy.
type Tone string

const (
	ToneEncouraging Tone = "encouraging"
	ToneNeutral     Tone = "neutral"
	ToneCautious    Tone = "cautious"
)

// DefaultMaxLength is the default message budget in characters.
const DefaultMaxLength = 300

// Options tune one generation. Nil booleans default to true.
type Options struct {
	IncludeRemedies *bool `json:"include_remedies,omitempty"`
	IncludeTiming   *bool `json:"include_timing,omitempty"`
	Tone            Tone  `json:"tone,omitempty"`
	MaxLength       int   `json:"max_length,omitempty"`
}

// Validate rejects options that indicate a programming error at the call site.
func (o *Options) Validate() error {
	var errs []error
	switch o.Tone {
	case "", ToneEncouraging, ToneNeutral, ToneCautious:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown tone %q", ErrInvalidOptions, o.Tone))
	}
	if o.MaxLength < 0 {
		errs = append(errs, fmt.Errorf("%w: max length %d must not be negative", ErrInvalidOptions, o.MaxLength))
	}
	return errors.Join(errs...)
}

func (o *Options) remedies() bool { return o.IncludeRemedies == nil || *o.IncludeRemedies }

func (o *Options) timing() bool { return o.IncludeTiming == nil || *o.IncludeTiming }

func (o *Options) tone() Tone {
	if o.Tone == "" {
		return ToneEncouraging
	}
	return o.Tone
}

func (o *Options) maxLength() int {
	if o.MaxLength == 0 {
		return DefaultMaxLength
	}
	return o.MaxLength
}

// maxTokens turns the character budget into a rough token budget.
func (o *Options) maxTokens() int {
	return max(o.maxLength()/3, 1)
}
