package cloud

import (
	"context"
	"errors"

	"github.com/lunacloud/stackctl/internal/cmk"
)

// ErrNotFound reports that a resolver could not match a catalog entry or
// zone by name. Lookups for deployment-owned resources never return it;
// they report absence with a boolean instead.
var ErrNotFound = errors.New("resource not found")

// Executor runs one CloudStack CLI command and returns its parsed output.
type Executor interface {
	Execute(ctx context.Context, args ...string) (cmk.Result, error)
}

// Client provides name-based lookups and typed mutations for every resource
// kind in the deployment graph. The deterministic resource name is the only
// correlation key, so the client never caches lookup results; every call
// reflects the provider's current state.
type Client struct {
	api Executor
}

func New(api Executor) *Client {
	return &Client{api: api}
}
