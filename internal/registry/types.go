package registry

import (
	"time"

	"github.com/opencontainers/go-digest"
)

// ReleaseRecord describes an existing release for a content hash.
type ReleaseRecord struct {
	ID        string        `json:"id"`
	Hash      digest.Digest `json:"hash"`
	Namespace string        `json:"namespace"`
	Private   bool          `json:"private"`
	CreatedAt time.Time     `json:"created_at"`
}

// UploadDestination is a signed, time-limited URL the archive bytes go to.
type UploadDestination struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PushResult is the registry's response to a release registration.
type PushResult struct {
	Success   bool   `json:"success"`
	ReleaseID string `json:"release_id"`
	Message   string `json:"message"`
}

// ReleaseStatus reports the readiness of a pushed release.
type ReleaseStatus struct {
	State          string `json:"state"`
	ContainerReady bool   `json:"container_ready"`
	BindingsReady  bool   `json:"bindings_ready"`
	Message        string `json:"message"`
}

// Identity is the authenticated user and the namespaces they can push to.
type Identity struct {
	Username   string   `json:"username"`
	Namespaces []string `json:"namespaces"`
}

// PackageSummary is the read-path view of a published package.
type PackageSummary struct {
	Name      string        `json:"name"`
	Namespace string        `json:"namespace"`
	Latest    string        `json:"latest"`
	Hash      digest.Digest `json:"hash"`
	Private   bool          `json:"private"`
	UpdatedAt time.Time     `json:"updated_at"`
}
