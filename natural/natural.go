//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package natural augments agent runs with conversation-naturalness
// features: state tracking, tone detection, response style control, opener
// hints and context compression. Everything rides the agent loop's extra
// context and history inputs; the loop's contract is untouched.
package natural

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-botagent-go/agent"
	"trpc.group/trpc-go/trpc-botagent-go/memory"
	"trpc.group/trpc-go/trpc-botagent-go/model"
)

// openerCountKey tracks per-session opener hints in working memory.
const openerCountKey = "sdk.opener_count"

// PromptFragments collects the prompt additions and metadata one Enhance
// pass produced.
type PromptFragments struct {
	// SystemAdditions are prompt blocks to inject, in order.
	SystemAdditions []string
	// KV carries structured attributes for tracing and hooks.
	KV map[string]any
	// Notes records which features fired, for debugging.
	Notes []string
}

func newPromptFragments() *PromptFragments {
	return &PromptFragments{KV: make(map[string]any)}
}

// Text joins the non-empty system additions for injection.
func (f *PromptFragments) Text() string {
	var parts []string
	for _, a := range f.SystemAdditions {
		if a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, "\n\n")
}

// AddSystem appends a prompt block, ignoring empty text.
func (f *PromptFragments) AddSystem(text string) {
	if text != "" {
		f.SystemAdditions = append(f.SystemAdditions, text)
	}
}

func (f *PromptFragments) addNote(format string, args ...any) {
	f.Notes = append(f.Notes, fmt.Sprintf(format, args...))
}

// Config selects which features run. The zero value disables everything;
// DefaultConfig enables the recommended set.
type Config struct {
	// StateTracking derives and announces the conversation state.
	StateTracking bool
	// EmotionDetection scores the user's tone and hints the model.
	EmotionDetection bool
	// StylePostProcess rewrites replies per the style rules.
	StylePostProcess bool
	// OpenerGeneration adds situational opening hints.
	OpenerGeneration bool
	// ContextCompress summarizes oversized histories. Needs Summarize.
	ContextCompress bool
	// StyleRetry exposes regenerate prompts for style violations.
	StyleRetry bool

	// Style configures the style controller.
	Style StyleConfig
	// Opener configures the opener generator.
	Opener OpenerConfig
	// Compressor configures the context compressor.
	Compressor CompressorConfig
	// Summarize backs the compressor. Required when ContextCompress.
	Summarize SummarizeFunc
	// Location is the zone for time-of-day banding. Default time.Local.
	Location *time.Location
	// FollowupWindow is the gap that still counts as a followup.
	// Default 60s.
	FollowupWindow time.Duration
}

// DefaultConfig enables state tracking, emotion detection and style
// post-processing; opener, compression and retry stay off.
func DefaultConfig() Config {
	return Config{
		StateTracking:    true,
		EmotionDetection: true,
		StylePostProcess: true,
		Style:            DefaultStyleConfig(),
		Opener:           DefaultOpenerConfig(),
		Compressor:       DefaultCompressorConfig(),
	}
}

// Pipeline wires the enabled features in front of and behind an agent run.
type Pipeline struct {
	config   Config
	tracker  *StateTracker
	tone     *ToneDetector
	style    *StyleController
	opener   *OpenerGenerator
	compress *Compressor
}

// NewPipeline builds a pipeline for the config. ContextCompress without a
// Summarize function stays off.
func NewPipeline(config Config) *Pipeline {
	p := &Pipeline{config: config}
	if config.StateTracking {
		p.tracker = NewStateTracker(config.Location, config.FollowupWindow)
	}
	if config.EmotionDetection {
		p.tone = NewToneDetector()
	}
	if config.StylePostProcess || config.StyleRetry {
		p.style = NewStyleController(config.Style)
	}
	if config.OpenerGeneration {
		p.opener = NewOpenerGenerator(config.Opener)
	}
	if config.ContextCompress && config.Summarize != nil {
		p.compress = NewCompressor(config.Summarize, config.Compressor)
	}
	return p
}

// Enhance runs all pre-processing for one user turn. It returns the prompt
// fragments to inject and the (possibly compressed) history to use.
func (p *Pipeline) Enhance(
	ctx context.Context, session *memory.Session, userInput string, history []model.Message,
) (*PromptFragments, []model.Message, error) {
	now := time.Now()
	fragments := newPromptFragments()
	enhanced := history

	var st *State
	if p.tracker != nil {
		var err error
		st, err = p.tracker.Track(ctx, session, userInput, now)
		if err != nil {
			return nil, nil, err
		}
		if st.TurnIndex == 1 {
			if err := p.tracker.TouchSession(ctx, session, now); err != nil {
				return nil, nil, err
			}
		}
		fragments.AddSystem(st.FormatForPrompt())
		for k, v := range st.ToKV() {
			fragments.KV[k] = v
		}
		fragments.addNote("state.tracked")
	}

	if p.tone != nil {
		tone := p.tone.Detect(userInput, st)
		if prompt := tone.FormatForPrompt(); prompt != "" {
			fragments.AddSystem(prompt)
			fragments.addNote("tone.%s:%.2f", tone.Mood, tone.Confidence)
		}
		fragments.KV["sdk.user.emotion_tone"] = tone.Mood
		fragments.KV["sdk.user.emotion_confidence"] = tone.Confidence
	}

	if p.opener != nil && st != nil {
		count, _ := session.Working.Get(openerCountKey).(int)
		strategy := p.opener.Generate(st, count)
		if prompt := strategy.FormatForPrompt(); prompt != "" {
			fragments.AddSystem(prompt)
			session.Working.Set(openerCountKey, count+1)
			fragments.addNote("opener.%s", strategy.Situation)
		}
	}

	if p.style != nil && p.config.StylePostProcess {
		if prompt := p.style.BuildStylePrompt(); prompt != "" {
			fragments.AddSystem(prompt)
			fragments.addNote("style.prompt:preferred_%d", p.config.Style.PreferredLength)
		}
	}

	if p.compress != nil && len(enhanced) > 0 {
		compressed := p.compress.Compress(ctx, enhanced, session.Working)
		if len(compressed) != len(enhanced) {
			enhanced = compressed
			fragments.addNote("compressor.summarized")
		}
	}

	return fragments, enhanced, nil
}

// PostProcess applies the style corrections to a finished reply. It
// returns the corrected text and whether anything changed.
func (p *Pipeline) PostProcess(output string) (string, bool) {
	if p.style == nil || !p.config.StylePostProcess {
		return output, false
	}
	result, changed, _ := p.style.PostProcess(output)
	return result, changed
}

// BuildRetryPrompt returns a regenerate instruction when the reply
// violated the style rules, or "" when retry is off or the reply is fine.
func (p *Pipeline) BuildRetryPrompt(output string) string {
	if p.style == nil || !p.config.StyleRetry {
		return ""
	}
	_, _, violations := p.style.PostProcess(output)
	if len(violations) == 0 {
		return ""
	}
	return p.style.BuildRetryPrompt(violations)
}

// Loop wraps an agent and its memory session with the pipeline: Enhance
// before the run, style post-processing after it.
type Loop struct {
	agent    *agent.Agent
	session  *memory.Session
	pipeline *Pipeline

	mu            sync.Mutex
	lastFragments *PromptFragments
}

// NewLoop wraps ag and session with pipeline.
func NewLoop(ag *agent.Agent, session *memory.Session, pipeline *Pipeline) *Loop {
	return &Loop{agent: ag, session: session, pipeline: pipeline}
}

// Run executes one enhanced turn.
func (l *Loop) Run(ctx context.Context, input string, history []model.Message) (*agent.AgentResult, error) {
	fragments, enhanced, err := l.pipeline.Enhance(ctx, l.session, input, history)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.lastFragments = fragments
	l.mu.Unlock()

	opts := []agent.RunOption{}
	if extra := fragments.Text(); extra != "" {
		opts = append(opts, agent.WithExtraContext(extra))
	}
	if len(enhanced) > 0 {
		opts = append(opts, agent.WithHistory(enhanced))
	}
	result, err := l.agent.Run(ctx, input, opts...)
	if err != nil {
		return nil, err
	}

	if result.StoppedReason == agent.StopCompleted && result.FinalOutput != "" {
		if corrected, changed := l.pipeline.PostProcess(result.FinalOutput); changed {
			result.FinalOutput = corrected
		}
	}
	return result, nil
}

// LastFragments returns the fragments from the most recent Run.
func (l *Loop) LastFragments() *PromptFragments {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastFragments
}
