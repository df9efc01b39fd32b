package pricing

import (
	"strconv"
	"strings"
)

// Inputs are the resolved pricing parameters that shape the upstream price.
type Inputs struct {
	Channel string   `json:"channel"`
	APIKey  string   `json:"-"`
	Margin  *float64 `json:"margin,omitempty"`
	Markup  *float64 `json:"markup,omitempty"`
}

// MarginHeader formats the margin for the debug response header.
func (in Inputs) MarginHeader() string {
	if in.Margin == nil {
		return "default"
	}
	return strconv.FormatFloat(*in.Margin, 'f', -1, 64)
}

// Resolver maps a requested channel to the credential and pricing inputs to use.
type Resolver interface {
	Resolve(channel string) Inputs
}

// StaticResolver resolves channels from fixed configuration.
type StaticResolver struct {
	defaultChannel string
	defaultMargin  *float64
	apiKeys        map[string]string
	margins        map[string]float64
	markups        map[string]float64
	fallbackKey    string
}

// StaticConfig is the configuration of a StaticResolver.
type StaticConfig struct {
	DefaultChannel string
	DefaultMargin  float64
	FallbackAPIKey string
	APIKeys        map[string]string
	Margins        map[string]float64
	Markups        map[string]float64
}

// NewStaticResolver builds a resolver. A zero DefaultMargin leaves the margin to the upstream.
func NewStaticResolver(cfg StaticConfig) *StaticResolver {
	r := &StaticResolver{
		defaultChannel: strings.ToLower(strings.TrimSpace(cfg.DefaultChannel)),
		apiKeys:        lowerKeys(cfg.APIKeys),
		margins:        lowerKeys(cfg.Margins),
		markups:        lowerKeys(cfg.Markups),
		fallbackKey:    cfg.FallbackAPIKey,
	}
	if r.defaultChannel == "" {
		r.defaultChannel = "web"
	}
	if cfg.DefaultMargin != 0 {
		m := cfg.DefaultMargin
		r.defaultMargin = &m
	}
	return r
}

func lowerKeys[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// Resolve returns the inputs for channel, falling back to the default channel when the
// channel is unknown or empty.
func (r *StaticResolver) Resolve(channel string) Inputs {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if !r.known(channel) {
		channel = r.defaultChannel
	}

	in := Inputs{Channel: channel, APIKey: r.fallbackKey}
	if r.defaultMargin != nil {
		m := *r.defaultMargin
		in.Margin = &m
	}
	if key, ok := r.apiKeys[channel]; ok && key != "" {
		in.APIKey = key
	}
	if m, ok := r.margins[channel]; ok {
		in.Margin = &m
	}
	if m, ok := r.markups[channel]; ok {
		in.Markup = &m
	}
	return in
}

func (r *StaticResolver) known(channel string) bool {
	if channel == "" {
		return false
	}
	if channel == r.defaultChannel {
		return true
	}
	_, hasKey := r.apiKeys[channel]
	_, hasMargin := r.margins[channel]
	_, hasMarkup := r.markups[channel]
	return hasKey || hasMargin || hasMarkup
}
