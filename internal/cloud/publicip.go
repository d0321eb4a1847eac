package cloud

import (
	"context"
	"fmt"

	"github.com/lunacloud/stackctl/internal/models"
)

// ListPublicIPs returns the network's associated addresses without the
// provider-managed source NAT address, which must never carry static NAT or
// be released.
func (c *Client) ListPublicIPs(ctx context.Context, networkID string) ([]models.PublicIP, error) {
	result, err := c.api.Execute(ctx,
		"list", "publicipaddresses",
		"associatednetworkid="+networkID,
		"filter=id,ipaddress,issourcenat,isstaticnat,virtualmachineid",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list public ip addresses: %w", err)
	}

	var ips []models.PublicIP
	if err := result.Decode("publicipaddress", &ips); err != nil {
		return nil, err
	}

	usable := make([]models.PublicIP, 0, len(ips))
	for _, ip := range ips {
		if !ip.SourceNAT {
			usable = append(usable, ip)
		}
	}

	return usable, nil
}

func (c *Client) AssociateIP(ctx context.Context, networkID string) (models.PublicIP, error) {
	result, err := c.api.Execute(ctx, "associate", "ipaddress", "networkid="+networkID)
	if err != nil {
		return models.PublicIP{}, fmt.Errorf("failed to associate ip address: %w", err)
	}

	var ip models.PublicIP
	if err := result.Decode("ipaddress", &ip); err != nil {
		return models.PublicIP{}, err
	}

	return ip, nil
}

func (c *Client) EnableStaticNAT(ctx context.Context, ipID, vmID string) error {
	if _, err := c.api.Execute(ctx, "enable", "staticnat", "ipaddressid="+ipID, "virtualmachineid="+vmID); err != nil {
		return fmt.Errorf("failed to enable static nat: %w", err)
	}

	return nil
}

func (c *Client) DisableStaticNAT(ctx context.Context, ipID string) error {
	if _, err := c.api.Execute(ctx, "disable", "staticnat", "ipaddressid="+ipID); err != nil {
		return fmt.Errorf("failed to disable static nat: %w", err)
	}

	return nil
}

func (c *Client) ReleaseIP(ctx context.Context, ipID string) error {
	if _, err := c.api.Execute(ctx, "disassociate", "ipaddress", "id="+ipID); err != nil {
		return fmt.Errorf("failed to release ip address: %w", err)
	}

	return nil
}
