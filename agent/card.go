//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package agent

import "context"

// Visibility controls who can discover and call an agent.
type Visibility string

// Visibility levels.
const (
	// VisibilityPrivate restricts the agent to callers with the same owner.
	VisibilityPrivate Visibility = "private"
	// VisibilityOrg restricts the agent to callers in the same org.
	VisibilityOrg Visibility = "org"
	// VisibilityPublic makes the agent visible to everyone.
	VisibilityPublic Visibility = "public"
)

// SafetyLevel grades how carefully an agent must be invoked.
type SafetyLevel string

// Safety levels. High-safety agents reject direct tool-based handoff and
// require a coordinator decision.
const (
	SafetyLow    SafetyLevel = "low"
	SafetyMedium SafetyLevel = "medium"
	SafetyHigh   SafetyLevel = "high"
)

// HandoffPolicy controls how an agent accepts incoming handoffs.
type HandoffPolicy string

// Handoff policies.
const (
	// HandoffAuto accepts both tool-based and coordinator handoffs.
	HandoffAuto HandoffPolicy = "auto"
	// HandoffCoordinatorOnly rejects tool-based handoff.
	HandoffCoordinatorOnly HandoffPolicy = "coordinator_only"
	// HandoffDeny rejects all incoming handoffs.
	HandoffDeny HandoffPolicy = "deny"
)

// AgentCard is the serializable identity and governance metadata of an
// agent. The full struct is the admin view; Public returns the redacted
// copy safe to expose for discovery.
type AgentCard struct {
	// AgentID is the unique agent identifier.
	AgentID string `json:"agent_id"`
	// Name is the human-readable display name.
	Name string `json:"name"`
	// Description tells callers (and coordinator LLMs) what the agent does.
	Description string `json:"description,omitempty"`
	// Skills are exact-match discovery tags.
	Skills []string `json:"skills,omitempty"`
	// OwnerID identifies the owning principal.
	OwnerID string `json:"owner_id,omitempty"`
	// OrgID identifies the owning organization.
	OrgID string `json:"org_id,omitempty"`

	// Visibility gates discovery: private (default), org, or public.
	Visibility Visibility `json:"visibility,omitempty"`
	// AllowedCallerAgents, when non-empty, whitelists caller agent ids.
	AllowedCallerAgents []string `json:"allowed_caller_agents,omitempty"`
	// AllowedCallerOwners, when non-empty, whitelists caller owner ids.
	AllowedCallerOwners []string `json:"allowed_caller_owners,omitempty"`
	// RequiredScopes lists OAuth-style scopes a caller must hold.
	RequiredScopes []string `json:"required_scopes,omitempty"`
	// SafetyLevel is low, medium (default), or high.
	SafetyLevel SafetyLevel `json:"safety_level,omitempty"`
	// HandoffPolicy is auto (default), coordinator_only, or deny.
	HandoffPolicy HandoffPolicy `json:"handoff_policy,omitempty"`

	// Platforms, when non-empty, limits the chat platforms the agent
	// serves (e.g. "telegram", "discord"). Empty means all.
	Platforms []string `json:"platforms,omitempty"`
	// Locales, when non-empty, limits the BCP-47 languages the agent
	// handles. Empty means all.
	Locales []string `json:"locales,omitempty"`
	// MaxContextTokens caps the handoff context budget. Zero means the
	// request's own budget applies.
	MaxContextTokens int `json:"max_context_tokens,omitempty"`
	// Metadata carries free-form governance keys ("disabled",
	// "handoff_deny", "max_handoff_messages", ...).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Caller identifies who is asking: an agent id plus its owner and org.
type Caller struct {
	AgentID string
	OwnerID string
	OrgID   string
}

// Normalize fills defaulted enum fields in place.
func (c *AgentCard) Normalize() {
	if c.Visibility == "" {
		c.Visibility = VisibilityPrivate
	}
	if c.SafetyLevel == "" {
		c.SafetyLevel = SafetyMedium
	}
	if c.HandoffPolicy == "" {
		c.HandoffPolicy = HandoffAuto
	}
}

// Visible reports whether the card can be discovered by the caller.
// Public cards always are; org cards require the same non-empty org id;
// private cards require the same non-empty owner id.
func (c *AgentCard) Visible(caller Caller) bool {
	switch c.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityOrg:
		return c.OrgID != "" && caller.OrgID != "" && c.OrgID == caller.OrgID
	default:
		return caller.OwnerID != "" && c.OwnerID == caller.OwnerID
	}
}

// Public returns a copy with the caller rules blanked, safe for discovery
// listings. The unredacted struct is the admin view.
func (c *AgentCard) Public() *AgentCard {
	out := *c
	out.AllowedCallerAgents = nil
	out.AllowedCallerOwners = nil
	out.RequiredScopes = nil
	return &out
}

// RunFunc overrides how a runtime executes a handoff request.
type RunFunc func(ctx context.Context, req *HandoffRequest) (*HandoffResult, error)

// AgentRuntime binds a card to its local execution. It is never
// serialized; only the card travels.
type AgentRuntime struct {
	// Card is the agent's identity and governance metadata.
	Card AgentCard
	// Agent is the default execution path: the handoff engine drives this
	// loop with the filtered context when Run is nil.
	Agent *Agent
	// Run, when set, replaces the default loop execution entirely.
	Run RunFunc
	// InputFilter, when set, reshapes the incoming handoff context before
	// the built-in budget filters run.
	InputFilter ContextFilter
}

// AgentID returns the bound card's agent id.
func (rt *AgentRuntime) AgentID() string {
	return rt.Card.AgentID
}
