package publish

import (
	"context"
	"fmt"
	"strings"

	"parcel/internal/manifest"
)

// resolveNamespace determines the namespace to publish under.
//
// Precedence: the explicit override, then the prefix of the manifest's
// package name, then an interactive selection from the authenticated
// identity's namespaces. The identity query and prompt only happen on the
// last branch; with interaction disallowed it is skipped entirely and
// resolution fails without touching the network.
func (o *Orchestrator) resolveNamespace(ctx context.Context, explicit string, m *manifest.Manifest, interactive bool) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if name, ok := m.Name(); ok {
		// The name is "namespace/name"; a bare name is its own namespace.
		if ns, _, _ := strings.Cut(name, "/"); ns != "" {
			return ns, nil
		}
	}

	if !interactive {
		return "", ErrNoNamespace
	}

	if o.prompt == nil {
		return "", ErrNoNamespace
	}

	id, err := o.api.CurrentIdentity(ctx)
	if err != nil {
		return "", wrap(ErrRegistryQuery, err)
	}

	namespace, err := o.prompt.SelectNamespace(id)
	if err != nil {
		return "", fmt.Errorf("namespace selection failed: %w", err)
	}

	return namespace, nil
}
