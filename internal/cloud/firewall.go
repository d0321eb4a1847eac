package cloud

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lunacloud/stackctl/internal/models"
)

func (c *Client) ListFirewallRules(ctx context.Context, ipID string) ([]models.FirewallRule, error) {
	result, err := c.api.Execute(ctx, "list", "firewallrules", "ipaddressid="+ipID, "filter=id,startport,endport")
	if err != nil {
		return nil, fmt.Errorf("failed to list firewall rules: %w", err)
	}

	var rules []models.FirewallRule
	if err := result.Decode("firewallrule", &rules); err != nil {
		return nil, err
	}

	return rules, nil
}

// CreateFirewallRule opens a single TCP port to the world. Rules are always
// single-port, so start and end are the same.
func (c *Client) CreateFirewallRule(ctx context.Context, ipID string, port int) error {
	_, err := c.api.Execute(ctx,
		"create", "firewallrule",
		"ipaddressid="+ipID,
		"protocol=TCP",
		"startport="+strconv.Itoa(port),
		"endport="+strconv.Itoa(port),
		"cidrlist=0.0.0.0/0",
	)
	if err != nil {
		return fmt.Errorf("failed to create firewall rule: %w", err)
	}

	return nil
}

func (c *Client) DeleteFirewallRule(ctx context.Context, id string) error {
	if _, err := c.api.Execute(ctx, "delete", "firewallrule", "id="+id); err != nil {
		return fmt.Errorf("failed to delete firewall rule: %w", err)
	}

	return nil
}
