package credential

import (
	"context"

	"modelboot-go/internal/backend"
)

// Store persists one credential record per backend family. Load returns
// Kind=none with a nil error when nothing is stored; a corrupt record
// yields an error wrapping errors.ErrStoreCorrupt that references the
// record's location, never its contents.
type Store interface {
	Load(ctx context.Context, id backend.Identity) (Credential, error)
	Save(ctx context.Context, id backend.Identity, cred Credential) error
	Clear(ctx context.Context, id backend.Identity) error
}
