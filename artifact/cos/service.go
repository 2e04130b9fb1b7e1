//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package cos provides a Tencent Cloud Object Storage backed artifact
// service, for deployments where attachments must survive restarts or be
// shared across instances.
//
// Each artifact version is one object:
//
//	{app_name}/{user_id}/{session_id}/{filename}/{version}
//	{app_name}/{user_id}/user/{filename}/{version}   (files named "user:...")
//
// Credentials come from the COS_SECRETID and COS_SECRETKEY environment
// variables, or from WithSecretID and WithSecretKey.
package cos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	cossdk "github.com/tencentyun/cos-go-sdk-v5"

	"trpc.group/trpc-go/trpc-botagent-go/artifact"
)

var _ artifact.Service = (*Service)(nil)

const defaultTimeout = 60 * time.Second

// Service stores artifacts in a COS bucket.
type Service struct {
	client *cossdk.Client
}

// NewService creates a COS artifact service for the given bucket URL,
// e.g. "https://bucket.cos.ap-guangzhou.myqcloud.com".
func NewService(bucketURL string, opts ...Option) *Service {
	options := &options{
		timeout:   defaultTimeout,
		secretID:  os.Getenv("COS_SECRETID"),
		secretKey: os.Getenv("COS_SECRETKEY"),
	}
	for _, opt := range opts {
		opt(options)
	}

	u, _ := url.Parse(bucketURL)
	base := &cossdk.BaseURL{BucketURL: u}

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: options.timeout,
			Transport: &cossdk.AuthorizationTransport{
				SecretID:  options.secretID,
				SecretKey: options.secretKey,
			},
		}
	} else if httpClient.Timeout == 0 && options.timeout > 0 {
		// Copy so the caller's client is not mutated.
		httpClient = &http.Client{
			Timeout:   options.timeout,
			Transport: httpClient.Transport,
		}
	}

	return &Service{client: cossdk.NewClient(base, httpClient)}
}

// SaveArtifact uploads a new version of filename and returns its number.
func (s *Service) SaveArtifact(ctx context.Context, info artifact.SessionInfo, filename string, art *artifact.Artifact) (int, error) {
	versions, err := s.ListVersions(ctx, info, filename)
	if err != nil {
		return 0, fmt.Errorf("failed to list versions: %w", err)
	}
	version := 0
	if len(versions) > 0 {
		version = maxVersion(versions) + 1
	}

	opt := &cossdk.ObjectPutOptions{
		ObjectPutHeaderOptions: &cossdk.ObjectPutHeaderOptions{
			ContentType: art.MimeType,
		},
	}
	if _, err := s.client.Object.Put(ctx, objectName(info, filename, version), bytes.NewReader(art.Data), opt); err != nil {
		return 0, fmt.Errorf("failed to upload artifact: %w", err)
	}
	return version, nil
}

// LoadArtifact downloads the requested version, the latest when version
// is nil, or nil when no object exists.
func (s *Service) LoadArtifact(ctx context.Context, info artifact.SessionInfo, filename string, version *int) (*artifact.Artifact, error) {
	var target int
	if version != nil {
		target = *version
	} else {
		versions, err := s.ListVersions(ctx, info, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to list versions: %w", err)
		}
		if len(versions) == 0 {
			return nil, nil
		}
		target = maxVersion(versions)
	}

	rsp, err := s.client.Object.Get(ctx, objectName(info, filename, target), nil)
	if err != nil {
		if cossdk.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	defer rsp.Body.Close()

	data, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact data: %w", err)
	}
	contentType := rsp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &artifact.Artifact{
		Data:     data,
		MimeType: contentType,
		Name:     filename,
	}, nil
}

// ListArtifactKeys lists the filenames visible to the session: its own
// plus the user-scoped ones.
func (s *Service) ListArtifactKeys(ctx context.Context, info artifact.SessionInfo) ([]string, error) {
	seen := make(map[string]bool)
	for _, prefix := range []string{sessionPrefix(info), userPrefix(info)} {
		result, _, err := s.client.Bucket.Get(ctx, &cossdk.BucketGetOptions{Prefix: prefix})
		if err != nil {
			if cossdk.IsNotFoundError(err) {
				continue
			}
			return nil, fmt.Errorf("failed to list artifacts: %w", err)
		}
		for _, obj := range result.Contents {
			// Object keys end with ".../{filename}/{version}".
			parts := strings.Split(obj.Key, "/")
			if len(parts) >= 4 {
				seen[parts[len(parts)-2]] = true
			}
		}
	}

	filenames := make([]string, 0, len(seen))
	for filename := range seen {
		filenames = append(filenames, filename)
	}
	sort.Strings(filenames)
	return filenames, nil
}

// DeleteArtifact removes every version of filename.
func (s *Service) DeleteArtifact(ctx context.Context, info artifact.SessionInfo, filename string) error {
	versions, err := s.ListVersions(ctx, info, filename)
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}
	for _, version := range versions {
		if _, err := s.client.Object.Delete(ctx, objectName(info, filename, version)); err != nil && !cossdk.IsNotFoundError(err) {
			return fmt.Errorf("failed to delete artifact version %d: %w", version, err)
		}
	}
	return nil
}

// ListVersions returns the stored version numbers of filename.
func (s *Service) ListVersions(ctx context.Context, info artifact.SessionInfo, filename string) ([]int, error) {
	result, _, err := s.client.Bucket.Get(ctx, &cossdk.BucketGetOptions{
		Prefix: objectPrefix(info, filename),
	})
	if err != nil {
		if cossdk.IsNotFoundError(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	var versions []int
	for _, obj := range result.Contents {
		parts := strings.Split(obj.Key, "/")
		if len(parts) == 0 {
			continue
		}
		if version, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			versions = append(versions, version)
		}
	}
	return versions, nil
}

// objectName builds the object key for one artifact version. Filenames
// with the "user:" prefix live in a per-user namespace shared across
// sessions.
func objectName(info artifact.SessionInfo, filename string, version int) string {
	if strings.HasPrefix(filename, "user:") {
		return fmt.Sprintf("%s/%s/user/%s/%d", info.AppName, info.UserID, filename, version)
	}
	return fmt.Sprintf("%s/%s/%s/%s/%d", info.AppName, info.UserID, info.SessionID, filename, version)
}

// objectPrefix is the key prefix covering every version of filename.
func objectPrefix(info artifact.SessionInfo, filename string) string {
	if strings.HasPrefix(filename, "user:") {
		return fmt.Sprintf("%s/%s/user/%s/", info.AppName, info.UserID, filename)
	}
	return fmt.Sprintf("%s/%s/%s/%s/", info.AppName, info.UserID, info.SessionID, filename)
}

func sessionPrefix(info artifact.SessionInfo) string {
	return fmt.Sprintf("%s/%s/%s/", info.AppName, info.UserID, info.SessionID)
}

func userPrefix(info artifact.SessionInfo) string {
	return fmt.Sprintf("%s/%s/user/", info.AppName, info.UserID)
}

func maxVersion(versions []int) int {
	max := versions[0]
	for _, v := range versions[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
