package cloud

import (
	"context"
	"fmt"

	"github.com/lunacloud/stackctl/internal/models"
)

func (c *Client) ResolveZone(ctx context.Context, name string) (models.Zone, error) {
	result, err := c.api.Execute(ctx, "list", "zones", "name="+name, "filter=id,name")
	if err != nil {
		return models.Zone{}, fmt.Errorf("failed to list zones: %w", err)
	}

	var zones []models.Zone
	if err := result.Decode("zone", &zones); err != nil {
		return models.Zone{}, err
	}

	for _, zone := range zones {
		if zone.Name == name {
			return zone, nil
		}
	}

	return models.Zone{}, fmt.Errorf("zone %q: %w", name, ErrNotFound)
}
