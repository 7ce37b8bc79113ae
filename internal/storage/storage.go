package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// ErrArchiveDisabled is returned by the no-op archive when asked for a URL.
var ErrArchiveDisabled = errors.New("plan archive is not configured")

// PlanArchive stores generation artefacts (prompt context, raw provider
// response) as JSON objects and hands out temporary download links.
type PlanArchive interface {
	// PutJSON marshals v and writes it under objectKey.
	PutJSON(ctx context.Context, objectKey string, v interface{}) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// Enabled reports whether writes actually go anywhere.
	Enabled() bool
}

// PlanObjectKey builds the key of an archived artefact,
// e.g. plans/{userId}/{planId}/response.json.
func PlanObjectKey(userID, planID, name string) string {
	return fmt.Sprintf("plans/%s/%s/%s", userID, planID, name)
}

// Artefact names written per plan.
const (
	PromptObjectName   = "prompt.json"
	ResponseObjectName = "response.json"
)

type noopArchive struct{}

// NewNoopArchive returns an archive that drops every write.
func NewNoopArchive() PlanArchive { return noopArchive{} }

func (noopArchive) PutJSON(context.Context, string, interface{}) error { return nil }

func (noopArchive) GeneratePresignedDownloadURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrArchiveDisabled
}

func (noopArchive) Enabled() bool { return false }
