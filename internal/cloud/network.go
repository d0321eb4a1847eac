package cloud

import (
	"context"
	"fmt"

	"github.com/lunacloud/stackctl/internal/models"
)

// ListNetworks returns every network carrying exactly the given name,
// optionally scoped to a zone. The list API matches names loosely, so the
// results are filtered again here.
func (c *Client) ListNetworks(ctx context.Context, name, zoneID string) ([]models.Network, error) {
	args := []string{"list", "networks", "filter=id,name,zoneid"}
	if zoneID != "" {
		args = append(args, "zoneid="+zoneID)
	}

	result, err := c.api.Execute(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}

	var networks []models.Network
	if err := result.Decode("network", &networks); err != nil {
		return nil, err
	}

	matching := make([]models.Network, 0, len(networks))
	for _, network := range networks {
		if network.Name == name {
			matching = append(matching, network)
		}
	}

	return matching, nil
}

func (c *Client) FindNetwork(ctx context.Context, name, zoneID string) (models.Network, bool, error) {
	networks, err := c.ListNetworks(ctx, name, zoneID)
	if err != nil {
		return models.Network{}, false, err
	}

	if len(networks) == 0 {
		return models.Network{}, false, nil
	}

	return networks[0], true, nil
}

func (c *Client) CreateNetwork(ctx context.Context, name, offeringID, zoneID string) (models.Network, error) {
	result, err := c.api.Execute(ctx,
		"create", "network",
		"name="+name,
		"displaytext="+name,
		"networkofferingid="+offeringID,
		"zoneid="+zoneID,
	)
	if err != nil {
		return models.Network{}, fmt.Errorf("failed to create network: %w", err)
	}

	var network models.Network
	if err := result.Decode("network", &network); err != nil {
		return models.Network{}, err
	}

	return network, nil
}

func (c *Client) DeleteNetwork(ctx context.Context, id string) error {
	if _, err := c.api.Execute(ctx, "delete", "network", "id="+id); err != nil {
		return fmt.Errorf("failed to delete network: %w", err)
	}

	return nil
}
