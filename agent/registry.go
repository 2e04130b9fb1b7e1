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
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-botagent-go/log"
	"trpc.group/trpc-go/trpc-botagent-go/tool"
)

// ErrAgentExists is returned when registering an agent id twice.
var ErrAgentExists = errors.New("agent already registered")

// AgentRegistry is the central agent directory with visibility-aware
// discovery. Reads are concurrent; mutations are serialized.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]*AgentRuntime
}

// NewAgentRegistry creates an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: make(map[string]*AgentRuntime)}
}

// Register adds a runtime under its card's agent id. The card's defaulted
// enum fields are normalized in place. Registering a duplicate id fails
// with ErrAgentExists.
func (r *AgentRegistry) Register(rt *AgentRuntime) error {
	if rt == nil || rt.Card.AgentID == "" {
		return errors.New("agent runtime needs a card with an agent id")
	}
	id := rt.Card.AgentID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[id]; exists {
		return fmt.Errorf("%w: %q", ErrAgentExists, id)
	}
	rt.Card.Normalize()
	r.agents[id] = rt
	log.Debugf("Agent registered: %s", id)
	return nil
}

// Unregister removes an agent id and reports whether it was present.
func (r *AgentRegistry) Unregister(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[agentID]; !ok {
		return false
	}
	delete(r.agents, agentID)
	return true
}

// Get returns the runtime registered under agentID.
func (r *AgentRegistry) Get(agentID string) (*AgentRuntime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.agents[agentID]
	return rt, ok
}

// Has reports whether agentID is registered.
func (r *AgentRegistry) Has(agentID string) bool {
	_, ok := r.Get(agentID)
	return ok
}

// Len returns the number of registered agents.
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// List returns all cards sorted by agent id. Visibility is not applied;
// use FindBySkill for caller-scoped discovery.
func (r *AgentRegistry) List() []*AgentCard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cards := make([]*AgentCard, 0, len(r.agents))
	for _, rt := range r.agents {
		cards = append(cards, &rt.Card)
	}
	sortCards(cards)
	return cards
}

// FindBySkill returns the cards visible to the caller whose skill list
// contains skill (exact match), sorted by agent id.
func (r *AgentRegistry) FindBySkill(skill string, caller Caller) []*AgentCard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var cards []*AgentCard
	for _, rt := range r.agents {
		if !containsString(rt.Card.Skills, skill) {
			continue
		}
		if !rt.Card.Visible(caller) {
			continue
		}
		cards = append(cards, &rt.Card)
	}
	sortCards(cards)
	return cards
}

// CanHandoff reports whether a handoff from fromID to toID is permitted
// for the caller: the target must exist, must not have a deny policy, and
// must be visible.
func (r *AgentRegistry) CanHandoff(fromID, toID string, caller Caller) bool {
	target, ok := r.Get(toID)
	if !ok {
		return false
	}
	if target.Card.HandoffPolicy == HandoffDeny {
		return false
	}
	caller.AgentID = fromID
	return target.Card.Visible(caller)
}

// HandoffFunc executes a transfer decision made by the model: it hands the
// conversation to targetAgentID and returns the text fed back as the tool
// result.
type HandoffFunc func(ctx context.Context, targetAgentID, reason string) (string, error)

// TransferTools materializes one transfer_to_{agent_id} tool per agent
// that from may hand off to: not itself, not deny-policy, visible to
// from's caller triple, and not named in from's "handoff_deny" metadata
// (comma-separated ids). Tools are sorted by target agent id; each takes a
// single required "reason" string and invokes fn.
func (r *AgentRegistry) TransferTools(from *AgentCard, fn HandoffFunc) []tool.CallableTool {
	caller := Caller{AgentID: from.AgentID, OwnerID: from.OwnerID, OrgID: from.OrgID}
	denied := denySet(from.Metadata["handoff_deny"])

	r.mu.RLock()
	var targets []*AgentCard
	for _, rt := range r.agents {
		card := &rt.Card
		if card.AgentID == from.AgentID {
			continue
		}
		if card.HandoffPolicy == HandoffDeny {
			continue
		}
		if _, deny := denied[card.AgentID]; deny {
			continue
		}
		if !card.Visible(caller) {
			continue
		}
		targets = append(targets, card)
	}
	r.mu.RUnlock()
	sortCards(targets)

	tools := make([]tool.CallableTool, 0, len(targets))
	for _, target := range targets {
		targetID := target.AgentID
		tools = append(tools, &tool.Definition{
			Name:        "transfer_to_" + targetID,
			Description: fmt.Sprintf("Transfer conversation to %s: %s", target.Name, target.Description),
			Params: []tool.Param{{
				Name:        "reason",
				Type:        "string",
				Description: "Why you are transferring to this agent",
				Required:    true,
			}},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				reason, _ := args["reason"].(string)
				return fn(ctx, targetID, reason)
			},
		})
	}
	return tools
}

func sortCards(cards []*AgentCard) {
	sort.Slice(cards, func(i, j int) bool { return cards[i].AgentID < cards[j].AgentID })
}

// denySet parses a comma-separated id list into a set.
func denySet(raw string) map[string]struct{} {
	if raw == "" {
		return nil
	}
	out := make(map[string]struct{})
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}
