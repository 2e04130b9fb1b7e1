package artifact

import (
	"context"
	"errors"
)

// ErrNoService is returned by the context helpers when no artifact
// service travels on the context.
var ErrNoService = errors.New("artifact service is not initialized")

type serviceKey struct{}

// ContextWithService returns a context carrying the artifact service.
// The handoff engine installs it before running a target agent so tool
// handlers can resolve attachment references mid-run.
func ContextWithService(ctx context.Context, service Service) context.Context {
	return context.WithValue(ctx, serviceKey{}, service)
}

// ServiceFromContext retrieves the service installed by ContextWithService.
func ServiceFromContext(ctx context.Context) (Service, bool) {
	service, ok := ctx.Value(serviceKey{}).(Service)
	return service, ok
}

// LoadArtifact loads an artifact through the context's service.
func LoadArtifact(ctx context.Context, sessionInfo SessionInfo, filename string, version *int) (*Artifact, error) {
	service, ok := ServiceFromContext(ctx)
	if !ok {
		return nil, ErrNoService
	}
	return service.LoadArtifact(ctx, sessionInfo, filename, version)
}

// SaveArtifact saves an artifact through the context's service.
func SaveArtifact(ctx context.Context, sessionInfo SessionInfo, filename string, artifact *Artifact) (int, error) {
	service, ok := ServiceFromContext(ctx)
	if !ok {
		return 0, ErrNoService
	}
	return service.SaveArtifact(ctx, sessionInfo, filename, artifact)
}
