// Package inmemory provides an in-memory artifact service for tests and
// single-process deployments.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-botagent-go/artifact"
)

var _ artifact.Service = (*Service)(nil)

// Service keeps every artifact version in process memory.
type Service struct {
	mu        sync.RWMutex
	artifacts map[string][]*artifact.Artifact
}

// NewService creates an empty in-memory artifact service.
func NewService() *Service {
	return &Service{artifacts: make(map[string][]*artifact.Artifact)}
}

// SaveArtifact appends a new version and returns its number, starting at 0.
func (s *Service) SaveArtifact(ctx context.Context, info artifact.SessionInfo, filename string, art *artifact.Artifact) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := artifactPath(info, filename)
	version := len(s.artifacts[path])
	s.artifacts[path] = append(s.artifacts[path], art)
	return version, nil
}

// LoadArtifact returns the requested version, or the latest when version
// is nil. A missing artifact returns nil without an error.
func (s *Service) LoadArtifact(ctx context.Context, info artifact.SessionInfo, filename string, version *int) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.artifacts[artifactPath(info, filename)]
	if len(versions) == 0 {
		return nil, nil
	}
	idx := len(versions) - 1
	if version != nil {
		idx = *version
		if idx < 0 || idx >= len(versions) {
			return nil, fmt.Errorf("version %d does not exist", *version)
		}
	}
	return versions[idx], nil
}

// ListArtifactKeys returns the filenames visible to the session: its own
// plus the user-scoped ("user:" prefixed) ones.
func (s *Service) ListArtifactKeys(ctx context.Context, info artifact.SessionInfo) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionPrefix := fmt.Sprintf("%s/%s/%s/", info.AppName, info.UserID, info.SessionID)
	userPrefix := fmt.Sprintf("%s/%s/user/", info.AppName, info.UserID)
	var filenames []string
	for path := range s.artifacts {
		switch {
		case strings.HasPrefix(path, sessionPrefix):
			filenames = append(filenames, strings.TrimPrefix(path, sessionPrefix))
		case strings.HasPrefix(path, userPrefix):
			filenames = append(filenames, strings.TrimPrefix(path, userPrefix))
		}
	}
	sort.Strings(filenames)
	return filenames, nil
}

// DeleteArtifact removes every version of filename. Deleting a missing
// artifact is not an error.
func (s *Service) DeleteArtifact(ctx context.Context, info artifact.SessionInfo, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, artifactPath(info, filename))
	return nil
}

// ListVersions returns the stored version numbers, ascending.
func (s *Service) ListVersions(ctx context.Context, info artifact.SessionInfo, filename string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.artifacts[artifactPath(info, filename)]
	result := make([]int, len(versions))
	for i := range versions {
		result[i] = i
	}
	return result, nil
}

// artifactPath keys one artifact: "user:" files live in a per-user
// namespace shared across sessions, everything else is session-scoped.
func artifactPath(info artifact.SessionInfo, filename string) string {
	if strings.HasPrefix(filename, "user:") {
		return fmt.Sprintf("%s/%s/user/%s", info.AppName, info.UserID, filename)
	}
	return fmt.Sprintf("%s/%s/%s/%s", info.AppName, info.UserID, info.SessionID, filename)
}
