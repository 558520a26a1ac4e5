package publish

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/opencontainers/go-digest"
)

// shouldUpload reports whether the registry lacks a release for hash.
//
// A failed lookup is never treated as an answer: misreading it as
// "absent" would store duplicate content, misreading it as "present"
// would skip a needed publish. The error propagates instead.
func (o *Orchestrator) shouldUpload(ctx context.Context, hash digest.Digest) (bool, error) {
	record, err := o.api.FindByHash(ctx, hash)
	if err != nil {
		return false, wrap(ErrRegistryQuery, err)
	}

	if record == nil {
		log.Debug("No release found for hash, upload needed", "hash", hash)
		return true, nil
	}

	log.Debug("Release already exists for hash", "hash", hash, "release", record.ID)
	return false, nil
}
