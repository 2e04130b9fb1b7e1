package artifact

import "context"

// SessionInfo scopes artifacts to one conversation.
type SessionInfo struct {
	// AppName is the owning application or agent.
	AppName string
	// UserID is the owning user, or the source agent for handoffs.
	UserID string
	// SessionID is the conversation or request id.
	SessionID string
}

// Service stores and retrieves versioned artifacts. Each filename within
// a session carries its own version sequence starting at 0.
type Service interface {
	// SaveArtifact stores a new version of filename and returns its
	// version number. The first save of a filename returns 0.
	SaveArtifact(ctx context.Context, sessionInfo SessionInfo, filename string, artifact *Artifact) (int, error)

	// LoadArtifact returns the requested version, the latest when version
	// is nil, or nil when the artifact does not exist.
	LoadArtifact(ctx context.Context, sessionInfo SessionInfo, filename string, version *int) (*Artifact, error)

	// ListArtifactKeys returns the filenames stored in the session, sorted.
	ListArtifactKeys(ctx context.Context, sessionInfo SessionInfo) ([]string, error)

	// DeleteArtifact removes every version of filename.
	DeleteArtifact(ctx context.Context, sessionInfo SessionInfo, filename string) error

	// ListVersions returns the stored versions of filename, ascending.
	ListVersions(ctx context.Context, sessionInfo SessionInfo, filename string) ([]int, error)
}
