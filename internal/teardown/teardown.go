// Package teardown destroys every remote resource belonging to a
// deployment, walking the graph in reverse dependency order. Resources may
// already be half deleted when it runs, so unlike provisioning each failed
// call is recorded as a warning and the sequence keeps going.
package teardown

import (
	"context"
	"fmt"
	"time"

	"github.com/lunacloud/stackctl/internal/cmk"
	"github.com/lunacloud/stackctl/internal/models"
	"github.com/lunacloud/stackctl/internal/naming"
	"github.com/lunacloud/stackctl/internal/telemetry"
	"github.com/rs/zerolog"
)

const (
	// DefaultDetachSettle is how long a volume detach gets to finish before
	// the delete lands.
	DefaultDetachSettle = 2 * time.Second

	// DefaultNetworkSettle is how long destroyed machines get to expunge
	// before their network is deleted.
	DefaultNetworkSettle = 5 * time.Second
)

type NetworkRemover interface {
	ResolveZone(ctx context.Context, name string) (models.Zone, error)
	ListNetworks(ctx context.Context, name, zoneID string) ([]models.Network, error)
	DeleteNetwork(ctx context.Context, id string) error
	FindKeyPair(ctx context.Context, name string) (bool, error)
	DeleteKeyPair(ctx context.Context, name string) error
}

type ComputeRemover interface {
	ListVMsInNetwork(ctx context.Context, networkID string) ([]models.VirtualMachine, error)
	DestroyVM(ctx context.Context, id string) error
}

type AddressRemover interface {
	ListPublicIPs(ctx context.Context, networkID string) ([]models.PublicIP, error)
	DisableStaticNAT(ctx context.Context, ipID string) error
	ListFirewallRules(ctx context.Context, ipID string) ([]models.FirewallRule, error)
	DeleteFirewallRule(ctx context.Context, id string) error
	ReleaseIP(ctx context.Context, ipID string) error
}

type StorageRemover interface {
	ListTaggedVolumes(ctx context.Context, tagKey, tagValue, zoneID string) ([]models.Volume, error)
	ListSnapshotPolicies(ctx context.Context, volumeID string) ([]models.SnapshotPolicy, error)
	DeleteSnapshotPolicy(ctx context.Context, id string) error
	DetachVolume(ctx context.Context, id string) error
	DeleteVolume(ctx context.Context, id string) error
}

// CloudProvider is the slice of the cloud client the sequencer needs.
type CloudProvider interface {
	NetworkRemover
	ComputeRemover
	AddressRemover
	StorageRemover
}

type Config struct {
	Cloud         CloudProvider
	Deployment    string
	VolumeTag     string
	DetachSettle  time.Duration
	NetworkSettle time.Duration
	Sleep         func(ctx context.Context, delay time.Duration) error
	Logger        zerolog.Logger
	Metrics       *telemetry.Metrics
}

// Sequencer removes a deployment in fixed order: snapshot policies, data
// volumes, static NAT, firewall rules, public addresses, machines, the
// network, the ssh key pair.
type Sequencer struct {
	cloud         CloudProvider
	deployment    string
	volumeTag     string
	detachSettle  time.Duration
	networkSettle time.Duration
	sleep         func(ctx context.Context, delay time.Duration) error
	log           zerolog.Logger
	metrics       *telemetry.Metrics
}

func New(config Config) *Sequencer {
	sequencer := &Sequencer{
		cloud:         config.Cloud,
		deployment:    config.Deployment,
		volumeTag:     config.VolumeTag,
		detachSettle:  config.DetachSettle,
		networkSettle: config.NetworkSettle,
		sleep:         config.Sleep,
		log:           config.Logger.With().Str("component", "teardown").Logger(),
		metrics:       config.Metrics,
	}

	if sequencer.detachSettle == 0 {
		sequencer.detachSettle = DefaultDetachSettle
	}

	if sequencer.networkSettle == 0 {
		sequencer.networkSettle = DefaultNetworkSettle
	}

	if sequencer.sleep == nil {
		sequencer.sleep = cmk.SleepContext
	}

	if sequencer.metrics == nil {
		sequencer.metrics = telemetry.NewMetrics()
	}

	return sequencer
}

// Summary reports what one run achieved. Warnings lists every resource the
// run failed to remove; the run itself still counts as complete.
type Summary struct {
	Networks int
	Warnings []string
}

// Run destroys the deployment's resources. A zone name scopes the run to
// that zone's network and volumes; an empty zone tears down every network
// carrying the deployment name. The key pair is account wide and removed in
// both modes. Only the initial zone and network lookups are fatal, since
// without them there is nothing to walk; everything after that degrades to
// warnings in the summary.
func (s *Sequencer) Run(ctx context.Context, zone string) (Summary, error) {
	summary := Summary{}

	zoneID := ""
	if zone != "" {
		resolved, err := s.cloud.ResolveZone(ctx, zone)
		if err != nil {
			return summary, err
		}
		zoneID = resolved.ID
	}

	name := naming.Network(s.deployment)

	networks, err := s.cloud.ListNetworks(ctx, name, zoneID)
	if err != nil {
		return summary, err
	}

	if len(networks) == 0 {
		s.log.Info().Str("network", name).Msg("no matching network, nothing deployed")
	}

	// Volumes are discovered by tag, not by network, so leftovers are found
	// even when their machines and network are already gone.
	s.removeVolumes(ctx, &summary, zoneID)

	for _, network := range networks {
		s.dismantleNetwork(ctx, &summary, network)
		summary.Networks++
	}

	s.removeKeyPair(ctx, &summary)

	s.log.Info().
		Int("networks", summary.Networks).
		Int("warnings", len(summary.Warnings)).
		Msg("teardown complete")

	return summary, nil
}

func (s *Sequencer) warn(summary *Summary, resource string, err error) {
	s.metrics.TeardownWarnings.Inc()
	s.log.Warn().Str("resource", resource).Err(err).Msg("teardown step failed, continuing")

	summary.Warnings = append(summary.Warnings, fmt.Sprintf("%s: %v", resource, err))
}

// removeVolumes drops the snapshot policies of every tagged data volume,
// then detaches and deletes the volumes themselves.
func (s *Sequencer) removeVolumes(ctx context.Context, summary *Summary, zoneID string) {
	volumes, err := s.cloud.ListTaggedVolumes(ctx, s.volumeTag, s.deployment, zoneID)
	if err != nil {
		s.warn(summary, "tagged volumes", err)
		return
	}

	for _, volume := range volumes {
		s.removePolicies(ctx, summary, volume)
	}

	for _, volume := range volumes {
		s.removeVolume(ctx, summary, volume)
	}
}

func (s *Sequencer) removePolicies(ctx context.Context, summary *Summary, volume models.Volume) {
	policies, err := s.cloud.ListSnapshotPolicies(ctx, volume.ID)
	if err != nil {
		s.warn(summary, "snapshot policies of "+volume.Name, err)
		return
	}

	for _, policy := range policies {
		if err := s.cloud.DeleteSnapshotPolicy(ctx, policy.ID); err != nil {
			s.warn(summary, "snapshot policy of "+volume.Name, err)
			continue
		}

		s.log.Info().Str("volume", volume.Name).Msg("deleted snapshot policy")
	}
}

func (s *Sequencer) removeVolume(ctx context.Context, summary *Summary, volume models.Volume) {
	if volume.Attached() {
		if err := s.cloud.DetachVolume(ctx, volume.ID); err != nil {
			s.warn(summary, "volume "+volume.Name, err)
		}

		// the delete fails while the detach is still in flight
		_ = s.sleep(ctx, s.detachSettle)
	}

	if err := s.cloud.DeleteVolume(ctx, volume.ID); err != nil {
		s.warn(summary, "volume "+volume.Name, err)
		return
	}

	s.log.Info().Str("volume", volume.Name).Msg("deleted volume")
}

// dismantleNetwork clears one network: static NAT first, then firewall
// rules, addresses, machines and finally the network itself. The source NAT
// address is provider managed and never touched; deleting the network
// releases it.
func (s *Sequencer) dismantleNetwork(ctx context.Context, summary *Summary, network models.Network) {
	log := s.log.With().Str("network", network.Name).Str("zone", network.ZoneID).Logger()
	log.Info().Msg("tearing down network")

	vms, err := s.cloud.ListVMsInNetwork(ctx, network.ID)
	if err != nil {
		s.warn(summary, "virtual machines of "+network.Name, err)
	}

	ips, err := s.cloud.ListPublicIPs(ctx, network.ID)
	if err != nil {
		s.warn(summary, "public addresses of "+network.Name, err)
	}

	for _, ip := range ips {
		if !ip.StaticNAT {
			continue
		}

		if err := s.cloud.DisableStaticNAT(ctx, ip.ID); err != nil {
			s.warn(summary, "static nat on "+ip.IPAddress, err)
			continue
		}

		log.Info().Str("ip", ip.IPAddress).Msg("disabled static nat")
	}

	for _, ip := range ips {
		s.removeFirewallRules(ctx, summary, ip)
	}

	for _, ip := range ips {
		if err := s.cloud.ReleaseIP(ctx, ip.ID); err != nil {
			s.warn(summary, "public address "+ip.IPAddress, err)
			continue
		}

		log.Info().Str("ip", ip.IPAddress).Msg("released public address")
	}

	for _, vm := range vms {
		if err := s.cloud.DestroyVM(ctx, vm.ID); err != nil {
			s.warn(summary, "virtual machine "+vm.Name, err)
			continue
		}

		log.Info().Str("vm", vm.Name).Msg("destroyed virtual machine")
	}

	// machines expunge asynchronously and block the network delete while
	// they are still present
	_ = s.sleep(ctx, s.networkSettle)

	if err := s.cloud.DeleteNetwork(ctx, network.ID); err != nil {
		s.warn(summary, "network "+network.Name, err)
		return
	}

	log.Info().Msg("deleted network")
}

func (s *Sequencer) removeFirewallRules(ctx context.Context, summary *Summary, ip models.PublicIP) {
	rules, err := s.cloud.ListFirewallRules(ctx, ip.ID)
	if err != nil {
		s.warn(summary, "firewall rules on "+ip.IPAddress, err)
		return
	}

	for _, rule := range rules {
		if err := s.cloud.DeleteFirewallRule(ctx, rule.ID); err != nil {
			s.warn(summary, "firewall rule on "+ip.IPAddress, err)
			continue
		}

		s.log.Info().Str("ip", ip.IPAddress).Int("port", int(rule.StartPort)).Msg("deleted firewall rule")
	}
}

// removeKeyPair runs even when nothing else matched; the key pair is the
// one resource not tied to a zone or network.
func (s *Sequencer) removeKeyPair(ctx context.Context, summary *Summary) {
	name := naming.KeyPair(s.deployment)

	found, err := s.cloud.FindKeyPair(ctx, name)
	if err != nil {
		s.warn(summary, "ssh key pair "+name, err)
	} else if !found {
		s.log.Debug().Str("name", name).Msg("ssh key pair already deleted")
		return
	}

	if err := s.cloud.DeleteKeyPair(ctx, name); err != nil {
		s.warn(summary, "ssh key pair "+name, err)
		return
	}

	s.log.Info().Str("name", name).Msg("deleted ssh key pair")
}
