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
	"fmt"
	"strconv"
	"strings"

	"trpc.group/trpc-go/trpc-botagent-go/artifact"
	"trpc.group/trpc-go/trpc-botagent-go/log"
)

// attachmentRefPrefix marks offloaded attachment references.
const attachmentRefPrefix = "artifact:"

// attachmentSession scopes offloaded attachments: the target agent is the
// app, the source agent the user, and the conversation (or request, when
// no conversation id travels) the session.
func attachmentSession(req *HandoffRequest) artifact.SessionInfo {
	sessionID := req.Context.ConversationID
	if sessionID == "" {
		sessionID = req.RequestID
	}
	return artifact.SessionInfo{
		AppName:   req.ToAgent,
		UserID:    req.FromAgent,
		SessionID: sessionID,
	}
}

// offloadAttachments stores attachment payloads in the artifact service
// so only references travel with the handoff. A failed save keeps the
// payload inline with a warning; the handoff itself proceeds.
func (e *Engine) offloadAttachments(ctx context.Context, req *HandoffRequest) {
	info := attachmentSession(req)
	for i := range req.Context.Attachments {
		att := &req.Context.Attachments[i]
		if len(att.Data) == 0 || att.Ref != "" {
			continue
		}
		version, err := e.artifacts.SaveArtifact(ctx, info, att.Name, &artifact.Artifact{
			Data:     att.Data,
			MimeType: att.MimeType,
			Name:     att.Name,
		})
		if err != nil {
			log.Warnf("Attachment %s offload failed, sending inline: %v", att.Name, err)
			continue
		}
		att.Ref = fmt.Sprintf("%s%s@%d", attachmentRefPrefix, att.Name, version)
		att.Data = nil
	}
}

// ResolveAttachments loads offloaded payloads back into the request's
// attachments, reversing offloadAttachments on the receiving side.
func (e *Engine) ResolveAttachments(ctx context.Context, req *HandoffRequest) error {
	if e.artifacts == nil {
		return nil
	}
	info := attachmentSession(req)
	for i := range req.Context.Attachments {
		att := &req.Context.Attachments[i]
		if len(att.Data) > 0 || att.Ref == "" {
			continue
		}
		name, version, err := parseAttachmentRef(att.Ref)
		if err != nil {
			return err
		}
		art, err := e.artifacts.LoadArtifact(ctx, info, name, &version)
		if err != nil {
			return fmt.Errorf("attachment %s: %w", att.Name, err)
		}
		if art == nil {
			return fmt.Errorf("attachment %s: artifact %q not found", att.Name, att.Ref)
		}
		att.Data = art.Data
		if att.MimeType == "" {
			att.MimeType = art.MimeType
		}
	}
	return nil
}

// parseAttachmentRef splits "artifact:{name}@{version}".
func parseAttachmentRef(ref string) (string, int, error) {
	rest, ok := strings.CutPrefix(ref, attachmentRefPrefix)
	if !ok {
		return "", 0, fmt.Errorf("attachment ref %q: unknown scheme", ref)
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return "", 0, fmt.Errorf("attachment ref %q: missing version", ref)
	}
	version, err := strconv.Atoi(rest[at+1:])
	if err != nil {
		return "", 0, fmt.Errorf("attachment ref %q: bad version: %w", ref, err)
	}
	return rest[:at], version, nil
}
