package provision

import (
	"context"
	"errors"

	"github.com/lunacloud/stackctl/internal/cmk"
)

// ensure applies the lookup-or-create contract shared by every resource
// kind. An existing resource is returned untouched. When the provider
// rejects the create because the name is already taken, the lookup is run
// once more: a retried create may have landed on an earlier attempt whose
// response was lost. The returned flag tells the caller whether the
// resource predates this call, so creation-time side effects run at most
// once.
func ensure[T any](
	ctx context.Context,
	find func(ctx context.Context) (T, bool, error),
	create func(ctx context.Context) (T, error),
) (T, bool, error) {
	var zero T

	existing, found, err := find(ctx)
	if err != nil {
		return zero, false, err
	}
	if found {
		return existing, true, nil
	}

	created, err := create(ctx)
	if err != nil {
		if isAlreadyExists(err) {
			if existing, found, findErr := find(ctx); findErr == nil && found {
				return existing, true, nil
			}
		}

		return zero, false, err
	}

	return created, false, nil
}

func isAlreadyExists(err error) bool {
	return errors.Is(err, cmk.ErrAlreadyExists)
}
