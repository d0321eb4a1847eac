package provision

import (
	"context"

	"github.com/lunacloud/stackctl/internal/models"
	"github.com/samber/lo"
)

var (
	webPorts = []int{22, 80, 443}
	sshOnly  = []int{22}
)

// assignAddresses gives every machine exactly one static NAT address. The
// machine's current binding is always reused first: asking the provider for
// a second static NAT on the same machine is a hard error, and partial runs
// regularly leave machines already bound. Next preference is an associated
// but unbound address. Only when neither exists is a new one acquired.
func (r *run) assignAddresses(ctx context.Context) error {
	ips, err := r.cloud.ListPublicIPs(ctx, r.network.ID)
	if err != nil {
		return err
	}

	claimed := map[string]bool{}

	assign := func(vm models.VirtualMachine) (models.PublicIP, error) {
		if ip, bound := lo.Find(ips, func(ip models.PublicIP) bool {
			return ip.StaticNAT && ip.VirtualMachineID == vm.ID
		}); bound {
			claimed[ip.ID] = true
			r.log.Debug().Str("name", vm.Name).Str("ip", ip.IPAddress).Msg("reusing static nat binding")
			return ip, nil
		}

		ip, free := lo.Find(ips, func(ip models.PublicIP) bool {
			return !ip.StaticNAT && !claimed[ip.ID]
		})
		if !free {
			acquired, err := r.cloud.AssociateIP(ctx, r.network.ID)
			if err != nil {
				return models.PublicIP{}, err
			}
			ips = append(ips, acquired)
			ip = acquired
			r.log.Info().Str("ip", ip.IPAddress).Msg("acquired public ip address")
		}
		claimed[ip.ID] = true

		if err := r.cloud.EnableStaticNAT(ctx, ip.ID, vm.ID); err != nil {
			return models.PublicIP{}, err
		}
		ip.StaticNAT = true
		ip.VirtualMachineID = vm.ID

		r.log.Info().Str("name", vm.Name).Str("ip", ip.IPAddress).Msg("bound static nat")

		return ip, nil
	}

	if r.webIP, err = assign(r.web); err != nil {
		return err
	}

	for _, worker := range r.workers {
		ip, err := assign(worker)
		if err != nil {
			return err
		}
		r.workerIPs = append(r.workerIPs, ip)
	}

	if r.state.DBEnabled {
		if r.dbIP, err = assign(r.db); err != nil {
			return err
		}
	}

	return nil
}

// ensureFirewall opens the role's port set on each address. Existing rules
// are kept; missing ones are added. Extra rules are left alone, they may be
// operator-made.
func (r *run) ensureFirewall(ctx context.Context) error {
	type binding struct {
		ip    models.PublicIP
		ports []int
	}

	bindings := []binding{{ip: r.webIP, ports: webPorts}}
	for _, ip := range r.workerIPs {
		bindings = append(bindings, binding{ip: ip, ports: sshOnly})
	}
	if r.state.DBEnabled {
		bindings = append(bindings, binding{ip: r.dbIP, ports: sshOnly})
	}

	for _, binding := range bindings {
		rules, err := r.cloud.ListFirewallRules(ctx, binding.ip.ID)
		if err != nil {
			return err
		}

		for _, port := range binding.ports {
			open := lo.ContainsBy(rules, func(rule models.FirewallRule) bool {
				return int(rule.StartPort) == port && int(rule.EndPort) == port
			})
			if open {
				continue
			}

			if err := r.cloud.CreateFirewallRule(ctx, binding.ip.ID, port); err != nil {
				return err
			}

			r.log.Info().Str("ip", binding.ip.IPAddress).Int("port", port).Msg("opened firewall port")
		}
	}

	return nil
}
