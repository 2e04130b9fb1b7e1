//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-botagent-go/artifact"
)

func testInfo() artifact.SessionInfo {
	return artifact.SessionInfo{AppName: "app", UserID: "u1", SessionID: "s1"}
}

func textArtifact(content string) *artifact.Artifact {
	return &artifact.Artifact{Data: []byte(content), MimeType: "text/plain"}
}

func TestSaveAssignsSequentialVersions(t *testing.T) {
	s := NewService()
	for i := 0; i < 3; i++ {
		version, err := s.SaveArtifact(context.Background(), testInfo(), "notes.txt", textArtifact("v"))
		require.NoError(t, err)
		assert.Equal(t, i, version)
	}
}

func TestLoadLatestAndByVersion(t *testing.T) {
	s := NewService()
	_, err := s.SaveArtifact(context.Background(), testInfo(), "notes.txt", textArtifact("first"))
	require.NoError(t, err)
	_, err = s.SaveArtifact(context.Background(), testInfo(), "notes.txt", textArtifact("second"))
	require.NoError(t, err)

	latest, err := s.LoadArtifact(context.Background(), testInfo(), "notes.txt", nil)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, []byte("second"), latest.Data)

	v0 := 0
	first, err := s.LoadArtifact(context.Background(), testInfo(), "notes.txt", &v0)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), first.Data)

	bad := 9
	_, err = s.LoadArtifact(context.Background(), testInfo(), "notes.txt", &bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 9 does not exist")
}

func TestLoadMissingReturnsNil(t *testing.T) {
	s := NewService()
	art, err := s.LoadArtifact(context.Background(), testInfo(), "absent.txt", nil)
	require.NoError(t, err)
	assert.Nil(t, art)
}

func TestListArtifactKeysScopes(t *testing.T) {
	s := NewService()
	ctx := context.Background()
	_, err := s.SaveArtifact(ctx, testInfo(), "b.txt", textArtifact("x"))
	require.NoError(t, err)
	_, err = s.SaveArtifact(ctx, testInfo(), "a.txt", textArtifact("x"))
	require.NoError(t, err)
	_, err = s.SaveArtifact(ctx, testInfo(), "user:avatar.png", textArtifact("x"))
	require.NoError(t, err)

	// Another session of the same user still sees the user-scoped file.
	other := artifact.SessionInfo{AppName: "app", UserID: "u1", SessionID: "s2"}
	_, err = s.SaveArtifact(ctx, other, "c.txt", textArtifact("x"))
	require.NoError(t, err)

	keys, err := s.ListArtifactKeys(ctx, testInfo())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "user:avatar.png"}, keys)

	keys, err = s.ListArtifactKeys(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.txt", "user:avatar.png"}, keys)
}

func TestDeleteArtifact(t *testing.T) {
	s := NewService()
	ctx := context.Background()
	_, err := s.SaveArtifact(ctx, testInfo(), "notes.txt", textArtifact("x"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteArtifact(ctx, testInfo(), "notes.txt"))
	art, err := s.LoadArtifact(ctx, testInfo(), "notes.txt", nil)
	require.NoError(t, err)
	assert.Nil(t, art)

	// Deleting again is not an error.
	require.NoError(t, s.DeleteArtifact(ctx, testInfo(), "notes.txt"))
}

func TestListVersions(t *testing.T) {
	s := NewService()
	ctx := context.Background()
	versions, err := s.ListVersions(ctx, testInfo(), "notes.txt")
	require.NoError(t, err)
	assert.Empty(t, versions)

	for i := 0; i < 3; i++ {
		_, err := s.SaveArtifact(ctx, testInfo(), "notes.txt", textArtifact("x"))
		require.NoError(t, err)
	}
	versions, err = s.ListVersions(ctx, testInfo(), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, versions)
}
