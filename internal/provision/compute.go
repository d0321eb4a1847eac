package provision

import (
	"context"
	"fmt"

	"github.com/lunacloud/stackctl/internal/models"
	"github.com/lunacloud/stackctl/internal/naming"
	"github.com/samber/lo"
)

func (r *run) ensureVMs(ctx context.Context) error {
	web, err := r.ensureVM(ctx, naming.WebVM(r.deployment), r.offerings.web, r.webUserdata)
	if err != nil {
		return err
	}
	r.web = web

	for index := 1; index <= r.state.Workers(); index++ {
		worker, err := r.ensureVM(ctx, naming.WorkerVM(r.deployment, index), r.offerings.worker, "")
		if err != nil {
			return err
		}
		r.workers = append(r.workers, worker)
	}

	if r.state.DBEnabled {
		db, err := r.ensureVM(ctx, naming.DBVM(r.deployment), r.offerings.db, r.dbUserdata)
		if err != nil {
			return err
		}
		r.db = db
	}

	return nil
}

func (r *run) ensureVM(ctx context.Context, name, serviceOfferingID, userdata string) (models.VirtualMachine, error) {
	vm, existed, err := ensure(ctx,
		func(ctx context.Context) (models.VirtualMachine, bool, error) {
			return r.cloud.FindVM(ctx, name)
		},
		func(ctx context.Context) (models.VirtualMachine, error) {
			return r.cloud.DeployVM(ctx, models.DeployVMParams{
				Name:              name,
				ServiceOfferingID: serviceOfferingID,
				TemplateID:        r.template.ID,
				ZoneID:            r.zone.ID,
				NetworkID:         r.network.ID,
				KeyPair:           naming.KeyPair(r.deployment),
				Userdata:          userdata,
			})
		},
	)
	if err != nil {
		return models.VirtualMachine{}, err
	}

	r.logEnsured("virtual machine", name, existed)

	return vm, nil
}

// scaleVMs repairs compute drift. The provider only changes offerings on
// stopped machines, so a drifted machine goes through stop, scale, start;
// one that was already stopped is left stopped after scaling.
func (r *run) scaleVMs(ctx context.Context) error {
	targets := []struct {
		vm                *models.VirtualMachine
		serviceOfferingID string
	}{
		{vm: &r.web, serviceOfferingID: r.offerings.web},
	}

	for index := range r.workers {
		targets = append(targets, struct {
			vm                *models.VirtualMachine
			serviceOfferingID string
		}{vm: &r.workers[index], serviceOfferingID: r.offerings.worker})
	}

	if r.state.DBEnabled {
		targets = append(targets, struct {
			vm                *models.VirtualMachine
			serviceOfferingID string
		}{vm: &r.db, serviceOfferingID: r.offerings.db})
	}

	for _, target := range targets {
		if err := r.scaleVM(ctx, target.vm, target.serviceOfferingID); err != nil {
			return err
		}
	}

	return nil
}

func (r *run) scaleVM(ctx context.Context, vm *models.VirtualMachine, serviceOfferingID string) error {
	if vm.ServiceOfferingID == serviceOfferingID {
		return nil
	}

	r.log.Info().
		Str("name", vm.Name).
		Str("from", vm.ServiceOfferingName).
		Msg("scaling virtual machine")

	wasRunning := vm.Running()
	if wasRunning {
		if err := r.cloud.StopVM(ctx, vm.ID); err != nil {
			return err
		}
	}

	if err := r.cloud.ScaleVM(ctx, vm.ID, serviceOfferingID); err != nil {
		return err
	}

	if wasRunning {
		if err := r.cloud.StartVM(ctx, vm.ID); err != nil {
			return err
		}
	}

	vm.ServiceOfferingID = serviceOfferingID

	return nil
}

// trimWorkers removes workers above the desired count before the rest of
// the pipeline runs. The set is discovered by probing sequential names
// until the first miss, which is enough because workers are always created
// in order. Workers own no data volumes, so removal is never destructive to
// state.
func (r *run) trimWorkers(ctx context.Context) error {
	for index := r.state.Workers() + 1; ; index++ {
		name := naming.WorkerVM(r.deployment, index)

		vm, found, err := r.cloud.FindVM(ctx, name)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}

		if err := r.removeWorker(ctx, vm); err != nil {
			return fmt.Errorf("failed to remove excess worker %s: %w", name, err)
		}
	}
}

func (r *run) removeWorker(ctx context.Context, vm models.VirtualMachine) error {
	ips, err := r.cloud.ListPublicIPs(ctx, r.network.ID)
	if err != nil {
		return err
	}

	ip, bound := lo.Find(ips, func(ip models.PublicIP) bool {
		return ip.StaticNAT && ip.VirtualMachineID == vm.ID
	})
	if bound {
		if err := r.cloud.DisableStaticNAT(ctx, ip.ID); err != nil {
			return err
		}

		rules, err := r.cloud.ListFirewallRules(ctx, ip.ID)
		if err != nil {
			return err
		}
		for _, rule := range rules {
			if err := r.cloud.DeleteFirewallRule(ctx, rule.ID); err != nil {
				return err
			}
		}

		if err := r.cloud.ReleaseIP(ctx, ip.ID); err != nil {
			return err
		}
	}

	if err := r.cloud.DestroyVM(ctx, vm.ID); err != nil {
		return err
	}

	r.log.Info().
		Str("name", vm.Name).
		Str("ip", ip.IPAddress).
		Msg("removed excess worker")

	return nil
}
