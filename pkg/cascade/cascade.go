// Package cascade orders provider/model candidates for a generation
// attempt. The orchestrator walks the resulting list front to back,
// advancing on failure, so ordering decides which model gets the first
// (and usually only) call.
package cascade

import (
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Capability names a feature a candidate's model supports.
type Capability string

const (
	CapabilityStreaming Capability = "streaming"
	CapabilityPlanning  Capability = "planning"
	CapabilityVision    Capability = "vision"
)

// ErrNoCandidates is returned when filtering removes every candidate. The
// caller must treat this as terminal; the builder never silently falls back
// to an unfiltered candidate.
var ErrNoCandidates = errors.New("no candidates satisfy the requirements")

// ResolvedConfig is one (provider, model, credential) tuple supplied by the
// configuration resolver, together with its capability metadata.
type ResolvedConfig struct {
	ProviderID   string
	ModelID      string
	Credential   string
	Capabilities []Capability
	FreeTier     bool
}

// Candidate is an immutable, ordered entry in the cascade.
type Candidate struct {
	ProviderID   string
	ModelID      string
	Credential   string
	Label        string
	capabilities map[Capability]bool
}

// Has reports whether the candidate's model supports the capability.
func (c Candidate) Has(capability Capability) bool {
	return c.capabilities[capability]
}

// Requirements constrain and order the cascade.
type Requirements struct {
	Capabilities []Capability // candidates meeting all of these sort first
	ExcludeFree  bool         // drop free/rate-limited tiers entirely
}

// Builder turns resolved configs into an ordered candidate list. Feature
// toggles and prior-failure counts are explicit constructor state so
// concurrent requests never observe a mutating global.
type Builder struct {
	allowWeakModels bool
	priorFailures   map[string]int // providerID -> recorded failures
}

// NewBuilder creates a Builder. When allowWeakModels is false, candidates
// without the planning capability are dropped before ordering.
// priorFailures may be nil.
func NewBuilder(allowWeakModels bool, priorFailures map[string]int) *Builder {
	return &Builder{allowWeakModels: allowWeakModels, priorFailures: priorFailures}
}

// Build filters, orders, and labels the candidates.
//
// Ordering: candidates meeting all required capabilities sort before those
// that do not, then fewer recorded prior failures first; ties keep their
// original relative order. A streaming-capable candidate is additionally
// promoted to position 0 if the front candidate cannot stream, so the first
// attempt never wastes a call on an incapable model.
func (b *Builder) Build(configs []ResolvedConfig, req Requirements) ([]Candidate, error) {
	var candidates []Candidate
	for _, cfg := range configs {
		if req.ExcludeFree && cfg.FreeTier {
			continue
		}
		if !b.allowWeakModels && !hasCapability(cfg.Capabilities, CapabilityPlanning) {
			continue
		}
		candidates = append(candidates, newCandidate(cfg))
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		mi, mj := meetsAll(candidates[i], req.Capabilities), meetsAll(candidates[j], req.Capabilities)
		if mi != mj {
			return mi
		}
		return b.priorFailures[candidates[i].ProviderID] < b.priorFailures[candidates[j].ProviderID]
	})

	promoteStreaming(candidates)

	return candidates, nil
}

func newCandidate(cfg ResolvedConfig) Candidate {
	capabilities := make(map[Capability]bool, len(cfg.Capabilities))
	for _, capability := range cfg.Capabilities {
		capabilities[capability] = true
	}
	return Candidate{
		ProviderID:   cfg.ProviderID,
		ModelID:      cfg.ModelID,
		Credential:   cfg.Credential,
		Label:        prettyLabel(cfg.ProviderID, cfg.ModelID),
		capabilities: capabilities,
	}
}

// promoteStreaming moves the first streaming-capable candidate to the front
// when the current front candidate cannot stream.
func promoteStreaming(candidates []Candidate) {
	if len(candidates) == 0 || candidates[0].Has(CapabilityStreaming) {
		return
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Has(CapabilityStreaming) {
			promoted := candidates[i]
			copy(candidates[1:i+1], candidates[:i])
			candidates[0] = promoted
			return
		}
	}
}

func meetsAll(c Candidate, required []Capability) bool {
	for _, capability := range required {
		if !c.Has(capability) {
			return false
		}
	}
	return true
}

func hasCapability(capabilities []Capability, want Capability) bool {
	for _, capability := range capabilities {
		if capability == want {
			return true
		}
	}
	return false
}

// prettyLabel renders a human-readable candidate label such as
// "Openrouter: deepseek-chat".
func prettyLabel(providerID, modelID string) string {
	title := cases.Title(language.Und, cases.NoLower).String(strings.ToLower(providerID))
	return title + ": " + modelID
}
