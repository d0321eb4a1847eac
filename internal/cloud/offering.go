package cloud

import (
	"context"
	"fmt"
)

type offering struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *Client) ResolveServiceOffering(ctx context.Context, name string) (string, error) {
	return c.resolveOffering(ctx, "serviceofferings", "serviceoffering", name)
}

func (c *Client) ResolveNetworkOffering(ctx context.Context, name string) (string, error) {
	return c.resolveOffering(ctx, "networkofferings", "networkoffering", name)
}

func (c *Client) ResolveDiskOffering(ctx context.Context, name string) (string, error) {
	return c.resolveOffering(ctx, "diskofferings", "diskoffering", name)
}

func (c *Client) resolveOffering(ctx context.Context, kind, section, name string) (string, error) {
	result, err := c.api.Execute(ctx, "list", kind, "filter=id,name")
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", kind, err)
	}

	var offerings []offering
	if err := result.Decode(section, &offerings); err != nil {
		return "", err
	}

	for _, offering := range offerings {
		if offering.Name == name {
			return offering.ID, nil
		}
	}

	return "", fmt.Errorf("%s %q: %w", section, name, ErrNotFound)
}
