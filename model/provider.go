package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/promptwire/promptwire/core"
)

// Provider hands out model handles scoped to one vendor. A prompt referencing
// "openai/gpt-4o-mini" resolves the provider "openai" and asks it for the
// model "gpt-4o-mini" through the constructor matching the prompt kind.
type Provider interface {
	LanguageModel(name string, opts *core.AdaptOptions) (LanguageModel, error)
	ImageModel(name string, opts *core.AdaptOptions) (ImageModel, error)
	SpeechModel(name string, opts *core.AdaptOptions) (SpeechModel, error)
}

// Hub combines direct model registration with provider-scoped resolution.
// Names containing a "/" always take the provider path: the left segment must
// exactly match a registered provider, no pattern matching applies at that
// level. Plain names go through the per-kind registries.
type Hub struct {
	Language *Registry[LanguageModel]
	Image    *Registry[ImageModel]
	Speech   *Registry[SpeechModel]

	providers map[string]Provider
}

// NewHub creates a Hub with empty registries and no providers.
func NewHub() *Hub {
	return &Hub{
		Language:  NewRegistry[LanguageModel](),
		Image:     NewRegistry[ImageModel](),
		Speech:    NewRegistry[SpeechModel](),
		providers: make(map[string]Provider),
	}
}

// RegisterProvider makes provider handles resolvable under "name/...".
// Returns the hub for chaining.
func (h *Hub) RegisterProvider(name string, p Provider) *Hub {
	h.providers[name] = p
	return h
}

// splitProvider splits a provider-scoped identifier once at the first "/".
func splitProvider(name string) (provider, rest string, ok bool) {
	idx := strings.Index(name, "/")
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

func (h *Hub) provider(name string) (Provider, error) {
	p, ok := h.providers[name]
	if ok {
		return p, nil
	}
	registered := make([]string, 0, len(h.providers))
	for n := range h.providers {
		registered = append(registered, n)
	}
	sort.Strings(registered)
	return nil, fmt.Errorf("%w: %q (registered providers: %s)",
		ErrProviderNotRegistered, name, strings.Join(registered, ", "))
}

// ResolveLanguage resolves name to a language model handle.
func (h *Hub) ResolveLanguage(name string, opts *core.AdaptOptions) (LanguageModel, error) {
	if prov, rest, ok := splitProvider(name); ok {
		p, err := h.provider(prov)
		if err != nil {
			return nil, err
		}
		return p.LanguageModel(rest, opts)
	}
	return h.Language.Resolve(name, opts)
}

// ResolveImage resolves name to an image model handle.
func (h *Hub) ResolveImage(name string, opts *core.AdaptOptions) (ImageModel, error) {
	if prov, rest, ok := splitProvider(name); ok {
		p, err := h.provider(prov)
		if err != nil {
			return nil, err
		}
		return p.ImageModel(rest, opts)
	}
	return h.Image.Resolve(name, opts)
}

// ResolveSpeech resolves name to a speech model handle.
func (h *Hub) ResolveSpeech(name string, opts *core.AdaptOptions) (SpeechModel, error) {
	if prov, rest, ok := splitProvider(name); ok {
		p, err := h.provider(prov)
		if err != nil {
			return nil, err
		}
		return p.SpeechModel(rest, opts)
	}
	return h.Speech.Resolve(name, opts)
}
