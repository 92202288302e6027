package utils

import "strings"

// ScopeFull is the OAuth scope requested for every session
const ScopeFull = "https://www.googleapis.com/auth/drive"

// Folder marker written on every folder the engine creates
const (
	MarkerPropertyKey        = "CloudSyncFolder"
	MarkerPropertyValue      = "ba460da6-2cdf-43d8-98fc-ecda617ff1db"
	MarkerPropertyVisibility = "PRIVATE"
)

// Permission granted on uploaded files so retrieval URLs resolve
const (
	PublicPermissionRole = "reader"
	PublicPermissionType = "anyone"
)

// AccessTokenParam is appended to native download URLs
const AccessTokenParam = "access_token"

// Transfer defaults
const (
	UploadChunkSize          = 8 * 1024 * 1024 // 8 MiB
	DefaultRequestTimeoutSec = 3600
	SkipBufferSize           = 512
)

// Schema version
const SchemaVersion = "1.0"

// MIME types
const (
	MimeTypeFolder      = "application/vnd.google-apps.folder"
	MimeTypeOctetStream = "application/octet-stream"
)

// IsFolderMimeType compares against the folder sentinel case-insensitively
func IsFolderMimeType(mimeType string) bool {
	return strings.EqualFold(mimeType, MimeTypeFolder)
}
