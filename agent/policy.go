//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package agent

import (
	"fmt"

	"golang.org/x/text/language"
)

// Policy defaults.
const (
	defaultMaxHopCount = 3
	defaultDeadlineMS  = 30000
)

// Policy holds the access and loop-protection rules the handoff engine
// enforces. The zero value uses the defaults.
type Policy struct {
	// MaxHopCount bounds the handoff chain length. Zero means 3.
	MaxHopCount int
	// DefaultDeadlineMS applies when a request carries no deadline.
	// Zero means 30000.
	DefaultDeadlineMS int
	// AllowCrossOwner permits handoffs between agents of different owners.
	AllowCrossOwner bool
}

func (p *Policy) maxHopCount() int {
	if p.MaxHopCount > 0 {
		return p.MaxHopCount
	}
	return defaultMaxHopCount
}

// deadlineMS returns the effective deadline for a request.
func (p *Policy) deadlineMS(req *HandoffRequest) int {
	if req.DeadlineMS > 0 {
		return req.DeadlineMS
	}
	if p.DefaultDeadlineMS > 0 {
		return p.DefaultDeadlineMS
	}
	return defaultDeadlineMS
}

// CheckAccess runs the access pipeline against the target card. The first
// failing rule wins; nil means the handoff may proceed.
func (p *Policy) CheckAccess(req *HandoffRequest, target *AgentCard) *HandoffError {
	// Policy gates.
	if target.HandoffPolicy == HandoffDeny {
		return NewHandoffError(CodeNotAllowed,
			fmt.Sprintf("Agent %s denies handoff", target.AgentID))
	}
	if target.SafetyLevel == SafetyHigh && req.RequestedMode == ModeToolBased {
		return NewHandoffError(CodeSafetyBlock,
			fmt.Sprintf("Agent %s (safety=high) requires coordinator mode", target.AgentID))
	}
	if target.HandoffPolicy == HandoffCoordinatorOnly && req.RequestedMode == ModeToolBased {
		return NewHandoffError(CodeNotAllowed,
			fmt.Sprintf("Agent %s only accepts coordinator handoff", target.AgentID))
	}

	// Visibility.
	switch target.Visibility {
	case VisibilityPublic:
	case VisibilityOrg:
		if target.OrgID == "" || req.CallerOrgID != target.OrgID {
			return NewHandoffError(CodeNotAllowed, "Org agent: org_id mismatch")
		}
	default:
		if req.CallerOwnerID != target.OwnerID {
			return NewHandoffError(CodeNotAllowed, "Private agent: owner mismatch")
		}
	}

	// Caller whitelists.
	if len(target.AllowedCallerAgents) > 0 && !containsString(target.AllowedCallerAgents, req.FromAgent) {
		return NewHandoffError(CodeNotAllowed, "Caller agent not in whitelist")
	}
	if len(target.AllowedCallerOwners) > 0 && !containsString(target.AllowedCallerOwners, req.CallerOwnerID) {
		return NewHandoffError(CodeNotAllowed, "Caller owner not in whitelist")
	}

	// Owner isolation.
	if !p.AllowCrossOwner && req.CallerOwnerID != "" && target.OwnerID != "" &&
		req.CallerOwnerID != target.OwnerID {
		return NewHandoffError(CodeNotAllowed, "Cross-owner handoff disabled")
	}

	// Operational gates.
	if target.Metadata["disabled"] == "true" {
		return NewHandoffError(CodeNotAllowed,
			fmt.Sprintf("Agent %s is disabled", target.AgentID))
	}
	if len(target.Platforms) > 0 && !containsString(target.Platforms, req.Context.Platform) {
		return NewHandoffError(CodeNotAllowed,
			fmt.Sprintf("Agent %s does not serve platform %q", target.AgentID, req.Context.Platform))
	}
	if len(target.Locales) > 0 && req.Context.Locale != "" &&
		!localeSupported(target.Locales, req.Context.Locale) {
		return NewHandoffError(CodeNotAllowed,
			fmt.Sprintf("Agent %s does not support locale %q", target.AgentID, req.Context.Locale))
	}
	return nil
}

// CheckLoop validates the next hop: no self handoff, no hop budget
// overrun, no revisits.
func (p *Policy) CheckLoop(req *HandoffRequest) *HandoffError {
	if req.ToAgent == req.FromAgent {
		return NewHandoffError(CodeLoopDetected,
			fmt.Sprintf("Agent %s cannot hand off to itself", req.FromAgent))
	}
	next := req.HopCount + 1
	if next > p.maxHopCount() {
		return NewHandoffError(CodeLoopDetected,
			fmt.Sprintf("Max hop count exceeded: %d > %d", next, p.maxHopCount()))
	}
	if containsString(req.VisitedAgents, req.ToAgent) {
		return NewHandoffError(CodeLoopDetected,
			fmt.Sprintf("Agent %s already visited: %v", req.ToAgent, req.VisitedAgents))
	}
	return nil
}

// localeSupported matches the request locale against the supported list by
// base language, so "zh-TW" satisfies an agent declaring "zh-CN".
func localeSupported(supported []string, locale string) bool {
	reqTag, err := language.Parse(locale)
	if err != nil {
		return false
	}
	reqBase, _ := reqTag.Base()
	for _, loc := range supported {
		tag, err := language.Parse(loc)
		if err != nil {
			continue
		}
		base, _ := tag.Base()
		if base == reqBase {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
