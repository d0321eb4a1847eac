package cloud

import (
	"context"
	"fmt"

	"github.com/lunacloud/stackctl/internal/models"
)

const vmFilter = "filter=id,name,state,serviceofferingid,serviceofferingname,nic"

// FindVM looks a machine up by its deterministic name. The list API treats
// name= as a substring match, so worker-1 would also surface worker-10; the
// exact comparison below is what makes the lookup safe as an idempotency
// probe.
func (c *Client) FindVM(ctx context.Context, name string) (models.VirtualMachine, bool, error) {
	result, err := c.api.Execute(ctx, "list", "virtualmachines", "name="+name, vmFilter)
	if err != nil {
		return models.VirtualMachine{}, false, fmt.Errorf("failed to list virtual machines: %w", err)
	}

	var vms []models.VirtualMachine
	if err := result.Decode("virtualmachine", &vms); err != nil {
		return models.VirtualMachine{}, false, err
	}

	for _, vm := range vms {
		if vm.Name == name {
			return vm, true, nil
		}
	}

	return models.VirtualMachine{}, false, nil
}

func (c *Client) ListVMsInNetwork(ctx context.Context, networkID string) ([]models.VirtualMachine, error) {
	result, err := c.api.Execute(ctx, "list", "virtualmachines", "networkid="+networkID, vmFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list virtual machines: %w", err)
	}

	var vms []models.VirtualMachine
	if err := result.Decode("virtualmachine", &vms); err != nil {
		return nil, err
	}

	return vms, nil
}

func (c *Client) DeployVM(ctx context.Context, params models.DeployVMParams) (models.VirtualMachine, error) {
	args := []string{
		"deploy", "virtualmachine",
		"serviceofferingid=" + params.ServiceOfferingID,
		"templateid=" + params.TemplateID,
		"zoneid=" + params.ZoneID,
		"networkids=" + params.NetworkID,
		"keypair=" + params.KeyPair,
		"name=" + params.Name,
		"displayname=" + params.Name,
	}
	if params.Userdata != "" {
		args = append(args, "userdata="+params.Userdata)
	}

	result, err := c.api.Execute(ctx, args...)
	if err != nil {
		return models.VirtualMachine{}, fmt.Errorf("failed to deploy virtual machine: %w", err)
	}

	var vm models.VirtualMachine
	if err := result.Decode("virtualmachine", &vm); err != nil {
		return models.VirtualMachine{}, err
	}

	return vm, nil
}

func (c *Client) StopVM(ctx context.Context, id string) error {
	if _, err := c.api.Execute(ctx, "stop", "virtualmachine", "id="+id); err != nil {
		return fmt.Errorf("failed to stop virtual machine: %w", err)
	}

	return nil
}

func (c *Client) StartVM(ctx context.Context, id string) error {
	if _, err := c.api.Execute(ctx, "start", "virtualmachine", "id="+id); err != nil {
		return fmt.Errorf("failed to start virtual machine: %w", err)
	}

	return nil
}

func (c *Client) ScaleVM(ctx context.Context, id, serviceOfferingID string) error {
	if _, err := c.api.Execute(ctx, "scale", "virtualmachine", "id="+id, "serviceofferingid="+serviceOfferingID); err != nil {
		return fmt.Errorf("failed to scale virtual machine: %w", err)
	}

	return nil
}

func (c *Client) DestroyVM(ctx context.Context, id string) error {
	if _, err := c.api.Execute(ctx, "destroy", "virtualmachine", "id="+id, "expunge=true"); err != nil {
		return fmt.Errorf("failed to destroy virtual machine: %w", err)
	}

	return nil
}

// GetVMInternalIP re-reads the machine's NIC list; deploy results can be
// served before addressing settles.
func (c *Client) GetVMInternalIP(ctx context.Context, id string) (string, error) {
	result, err := c.api.Execute(ctx, "list", "virtualmachines", "id="+id, "filter=id,nic")
	if err != nil {
		return "", fmt.Errorf("failed to list virtual machines: %w", err)
	}

	var vms []models.VirtualMachine
	if err := result.Decode("virtualmachine", &vms); err != nil {
		return "", err
	}

	if len(vms) == 0 || vms[0].InternalIP() == "" {
		return "", fmt.Errorf("internal ip of virtual machine %s: %w", id, ErrNotFound)
	}

	return vms[0].InternalIP(), nil
}
