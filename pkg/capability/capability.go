// Package capability normalizes the server-sent capability document into
// an immutable, queryable gating snapshot.
//
// The snapshot answers one question: should a given surface (a module's
// navigation entry, or one action inside it) be visible and/or enabled
// right now. Two tiers are distinguished on purpose: entry denial hides
// the whole surface, action denial keeps the affordance discoverable but
// disabled with a user-facing reason. Every ambiguous or malformed input
// resolves to the most restrictive outcome.
package capability

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Profile is the coarse server-declared deployment mode.
type Profile string

const (
	ProfileNone         Profile = "none"
	ProfileCore         Profile = "core"
	ProfileCoreExchange Profile = "core+exchange"
	ProfileCoreQueue    Profile = "core+queue"
	ProfileFull         Profile = "full"
)

// ReasonCode is a stable identifier for why a surface is gated.
// Codes MUST NOT change between releases; clients key help text on them.
type ReasonCode string

const (
	ReasonFeatureDisabled     ReasonCode = "FEATURE_DISABLED"
	ReasonPermissionDenied    ReasonCode = "PERMISSION_DENIED"
	ReasonActionNotConfigured ReasonCode = "ACTION_NOT_CONFIGURED"
)

// GateDecision is the server's verdict for one entry point or action.
type GateDecision struct {
	Enabled    bool       `json:"enabled"`
	Reason     string     `json:"reason,omitempty"`
	ReasonCode ReasonCode `json:"reason_code,omitempty"`
	Permission string     `json:"permission,omitempty"`
}

// Module is one feature module's gating block.
type Module struct {
	Enabled bool                    `json:"enabled"`
	Visible bool                    `json:"visible"`
	Entry   GateDecision            `json:"entry"`
	Actions map[string]GateDecision `json:"actions,omitempty"`
}

// Snapshot is the parsed capability document. It is read-only for the
// lifetime of the page; a fresh server payload replaces it wholesale,
// it is never patched in place.
type Snapshot struct {
	SchemaVersion string            `json:"schema_version,omitempty"`
	Profile       Profile           `json:"profile"`
	Modules       map[string]Module `json:"modules,omitempty"`
	Routes        map[string]string `json:"routes,omitempty"`
	Features      map[string]bool   `json:"features,omitempty"`
	Panels        []string          `json:"panels,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// Decision is the resolved answer for one surface.
type Decision struct {
	Visible    bool
	Enabled    bool
	Reason     string
	ReasonCode ReasonCode
	Permission string
}

// schemaMajor is the capability document major version this client
// understands. The schema is append-only within a major version, so
// unknown fields are ignored and newer minors are fine; a newer major
// carries semantics we cannot interpret and fails closed.
const schemaMajor = 1

// Closed returns the fail-closed snapshot: profile none, every module
// disabled.
func Closed() *Snapshot {
	return &Snapshot{Profile: ProfileNone}
}

// Parse decodes a capability document. On any failure — malformed JSON,
// schema violation, unsupported major version — the returned snapshot is
// Closed() and the error describes why; callers can keep operating on
// the snapshot either way.
func Parse(raw []byte) (*Snapshot, error) {
	if err := validateDocument(raw); err != nil {
		return Closed(), fmt.Errorf("capability document rejected: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Closed(), fmt.Errorf("decode capability document: %w", err)
	}

	if err := checkSchemaVersion(snap.SchemaVersion); err != nil {
		return Closed(), err
	}

	snap.Profile = ParseProfile(string(snap.Profile))
	return &snap, nil
}

func checkSchemaVersion(raw string) error {
	if raw == "" {
		return nil
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		// Unparsable versions are advisory; the structural validation
		// already passed.
		slog.Warn("capability schema_version not semver, ignoring", "schema_version", raw)
		return nil
	}
	if v.Major() > schemaMajor {
		return fmt.Errorf("capability schema_version %s newer than supported major %d", raw, schemaMajor)
	}
	return nil
}

// ParseProfile maps a raw profile string to a known profile.
// Unrecognized input maps to none.
func ParseProfile(raw string) Profile {
	switch Profile(strings.ToLower(strings.TrimSpace(raw))) {
	case ProfileCore:
		return ProfileCore
	case ProfileCoreExchange:
		return ProfileCoreExchange
	case ProfileCoreQueue:
		return ProfileCoreQueue
	case ProfileFull:
		return ProfileFull
	default:
		return ProfileNone
	}
}

// GateNavItem resolves the gate for a module's navigation entry.
func (s *Snapshot) GateNavItem(module string) Decision {
	return s.resolve(module, "", false)
}

// GateAction resolves the gate for one action inside a module.
func (s *Snapshot) GateAction(module, action string) Decision {
	return s.resolve(module, action, true)
}

// resolve applies the fixed-order gating algorithm:
//
//  1. Module absent or disabled → hidden (FEATURE_DISABLED).
//  2. Entry denied → hidden, carrying the entry's reason.
//  3. No action requested → visible and enabled.
//  4. Known action → visible, enabled per the action's decision.
//  5. Unknown action → visible but disabled (ACTION_NOT_CONFIGURED).
func (s *Snapshot) resolve(module, action string, hasAction bool) Decision {
	m, ok := s.Modules[module]
	if !ok || !m.Enabled {
		return Decision{ReasonCode: ReasonFeatureDisabled}
	}
	if !m.Entry.Enabled {
		return Decision{
			Reason:     m.Entry.Reason,
			ReasonCode: m.Entry.ReasonCode,
			Permission: m.Entry.Permission,
		}
	}
	if !hasAction {
		return Decision{Visible: true, Enabled: true}
	}
	if a, ok := m.Actions[action]; ok {
		return Decision{
			Visible:    true,
			Enabled:    a.Enabled,
			Reason:     a.Reason,
			ReasonCode: a.ReasonCode,
			Permission: a.Permission,
		}
	}
	return Decision{Visible: true, ReasonCode: ReasonActionNotConfigured}
}

// CanAccessExchange reports whether the exchange module's entry resolves
// to enabled. Derived from the same resolution as navigation gating, so
// it cannot drift from the per-module truth.
func (s *Snapshot) CanAccessExchange() bool {
	return s.GateNavItem("exchange").Enabled
}

// CanAccessQueue reports whether the queue module's entry resolves to
// enabled.
func (s *Snapshot) CanAccessQueue() bool {
	return s.GateNavItem("queue").Enabled
}

// Route returns the URL registered under a key. Unknown keys return
// ok=false; callers treat that as "feature unavailable", not an error.
func (s *Snapshot) Route(key string) (string, bool) {
	u, ok := s.Routes[key]
	return u, ok
}

// Feature reports a feature flag; absent flags are off.
func (s *Snapshot) Feature(name string) bool {
	return s.Features[name]
}
