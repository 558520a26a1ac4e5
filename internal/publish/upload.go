package publish

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/opencontainers/go-digest"

	"parcel/internal/builder"
)

// push uploads the archive and registers the release, returning the new
// release identifier.
//
// The two steps fail independently. A transfer failure is not retried
// here; re-running the publish is safe. If registration fails after the
// transfer succeeded the uploaded bytes may be orphaned registry-side,
// which a later hash-keyed publish resolves.
func (o *Orchestrator) push(ctx context.Context, namespace string, artifact *builder.Artifact, hash digest.Digest, private bool, timeout time.Duration) (string, error) {
	o.progress.Start("Uploading the package to the registry...")

	dest, err := o.api.RequestUpload(ctx, hash)
	if err != nil {
		o.progress.Fail("Upload failed")
		return "", wrap(ErrUpload, err)
	}

	if err := o.api.Transfer(ctx, dest, artifact.Path, timeout); err != nil {
		o.progress.Fail("Upload failed")
		return "", wrap(ErrUpload, err)
	}
	log.Debug("Archive transferred", "hash", hash, "bytes", artifact.Size)

	result, err := o.api.RegisterRelease(ctx, namespace, dest, private)
	if err != nil {
		o.progress.Fail("Release registration failed")
		return "", wrap(ErrRegistryQuery, err)
	}

	if !result.Success {
		o.progress.Fail("Release registration rejected")
		return "", &RejectedError{Message: result.Message}
	}

	if result.ReleaseID == "" {
		o.progress.Fail("Release registration incomplete")
		return "", &InvariantError{Missing: "release id"}
	}

	o.progress.Success("Successfully pushed release to namespace " + namespace)
	return result.ReleaseID, nil
}
