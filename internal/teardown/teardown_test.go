package teardown

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lunacloud/stackctl/internal/cloud"
	"github.com/lunacloud/stackctl/internal/cmk"
	"github.com/lunacloud/stackctl/internal/cmk/cmktest"
	"github.com/lunacloud/stackctl/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDeployment = "shop-a1b2-preview"

func noSleep(context.Context, time.Duration) error { return nil }

func newSequencer(fake *cmktest.Cloud) *Sequencer {
	return newSequencerWithMetrics(fake, nil)
}

func newSequencerWithMetrics(fake *cmktest.Cloud, metrics *telemetry.Metrics) *Sequencer {
	executor := cmk.New(cmk.Config{Runner: fake, Sleep: noSleep, Logger: zerolog.Nop()})

	return New(Config{
		Cloud:      cloud.New(executor),
		Deployment: testDeployment,
		VolumeTag:  "lunacloud-deploy-id",
		Sleep:      noSleep,
		Logger:     zerolog.Nop(),
		Metrics:    metrics,
	})
}

// seedDeployment plants a fully provisioned deployment in one zone, the way
// a finished provisioning run leaves it: web and db machines with static
// NAT addresses and firewall rules, tagged data volumes with snapshot
// policies, the source NAT address and the ssh key pair.
func seedDeployment(fake *cmktest.Cloud, prefix, zoneID string) {
	networkID := prefix + "-net"

	fake.Networks = append(fake.Networks, &cmktest.Network{
		ID:     networkID,
		Name:   testDeployment,
		ZoneID: zoneID,
	})

	if fake.KeyPair(testDeployment+"-key") == nil {
		fake.KeyPairs = append(fake.KeyPairs, &cmktest.KeyPair{
			Name:      testDeployment + "-key",
			PublicKey: "ssh-ed25519 AAAATESTKEY ci@lunacloud",
		})
	}

	web := &cmktest.VM{
		ID:        prefix + "-web",
		Name:      testDeployment + "-web",
		State:     "Running",
		NetworkID: networkID,
		ZoneID:    zoneID,
	}
	db := &cmktest.VM{
		ID:        prefix + "-db",
		Name:      testDeployment + "-db",
		State:     "Running",
		NetworkID: networkID,
		ZoneID:    zoneID,
	}
	fake.VMs = append(fake.VMs, web, db)

	fake.PublicIPs = append(fake.PublicIPs,
		&cmktest.PublicIP{ID: prefix + "-snat", Address: "203.0.113.1", NetworkID: networkID, SourceNAT: true},
		&cmktest.PublicIP{ID: prefix + "-ip-web", Address: "203.0.113.2", NetworkID: networkID, StaticNAT: true, VMID: web.ID},
		&cmktest.PublicIP{ID: prefix + "-ip-db", Address: "203.0.113.3", NetworkID: networkID, StaticNAT: true, VMID: db.ID},
	)

	for _, port := range []int{22, 80, 443} {
		fake.FirewallRules = append(fake.FirewallRules, &cmktest.FirewallRule{
			ID:        fmt.Sprintf("%s-fw-web-%d", prefix, port),
			IPID:      prefix + "-ip-web",
			StartPort: port,
			EndPort:   port,
		})
	}
	fake.FirewallRules = append(fake.FirewallRules, &cmktest.FirewallRule{
		ID:        prefix + "-fw-db-22",
		IPID:      prefix + "-ip-db",
		StartPort: 22,
		EndPort:   22,
	})

	tags := map[string]string{"lunacloud-deploy-id": testDeployment}
	fake.Volumes = append(fake.Volumes,
		&cmktest.Volume{ID: prefix + "-blob", Name: testDeployment + "-blob", SizeGB: 20, ZoneID: zoneID, VMID: web.ID, Tags: tags},
		&cmktest.Volume{ID: prefix + "-dbdata", Name: testDeployment + "-dbdata", SizeGB: 50, ZoneID: zoneID, VMID: db.ID, Tags: tags},
	)
	fake.SnapshotPolicies = append(fake.SnapshotPolicies,
		&cmktest.SnapshotPolicy{ID: prefix + "-pol-blob", VolumeID: prefix + "-blob"},
		&cmktest.SnapshotPolicy{ID: prefix + "-pol-dbdata", VolumeID: prefix + "-dbdata"},
	)
}

func Test_RunRemovesEverything(t *testing.T) {
	fake := cmktest.NewCloud()
	seedDeployment(fake, "a", "zone-1")

	summary, err := newSequencer(fake).Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Networks)
	assert.Empty(t, summary.Warnings)

	assert.Empty(t, fake.Networks)
	assert.Empty(t, fake.VMs)
	assert.Empty(t, fake.PublicIPs)
	assert.Empty(t, fake.FirewallRules)
	assert.Empty(t, fake.Volumes)
	assert.Empty(t, fake.SnapshotPolicies)
	assert.Empty(t, fake.KeyPairs)

	// both volumes were attached, so each was detached exactly once
	assert.Equal(t, 2, fake.MutationCount("detach volume"))
	assert.Equal(t, 2, fake.MutationCount("destroy virtualmachine"))
}

func Test_RunContinuesPastFailures(t *testing.T) {
	fake := cmktest.NewCloud()
	seedDeployment(fake, "a", "zone-1")
	fake.FailWith("disable staticnat", "internal error")

	metrics := telemetry.NewMetrics()

	summary, err := newSequencerWithMetrics(fake, metrics).Run(context.Background(), "")
	require.NoError(t, err)

	// one warning per static NAT address, everything downstream still ran
	require.Len(t, summary.Warnings, 2)
	assert.Contains(t, summary.Warnings[0], "static nat on")
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.TeardownWarnings))

	assert.Empty(t, fake.Networks)
	assert.Empty(t, fake.VMs)
	assert.Empty(t, fake.PublicIPs)
	assert.Empty(t, fake.Volumes)
	assert.Empty(t, fake.KeyPairs)
}

func Test_RunScopedToZone(t *testing.T) {
	fake := cmktest.NewCloud()
	seedDeployment(fake, "a", "zone-1")
	seedDeployment(fake, "b", "zone-2")

	summary, err := newSequencer(fake).Run(context.Background(), "ZP01")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Networks)
	assert.Empty(t, summary.Warnings)

	// zone-2 keeps its network, machines and volumes untouched
	require.Len(t, fake.Networks, 1)
	assert.Equal(t, "zone-2", fake.Networks[0].ZoneID)
	assert.Len(t, fake.VMs, 2)
	assert.Len(t, fake.Volumes, 2)
	for _, volume := range fake.Volumes {
		assert.Equal(t, "zone-2", volume.ZoneID)
	}

	// the key pair is account wide and goes regardless of the zone filter
	assert.Empty(t, fake.KeyPairs)
}

func Test_RunAllZones(t *testing.T) {
	fake := cmktest.NewCloud()
	seedDeployment(fake, "a", "zone-1")
	seedDeployment(fake, "b", "zone-2")

	summary, err := newSequencer(fake).Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Networks)
	assert.Empty(t, summary.Warnings)
	assert.Empty(t, fake.Networks)
	assert.Empty(t, fake.VMs)
	assert.Empty(t, fake.Volumes)
	assert.Empty(t, fake.KeyPairs)
}

func Test_RunWithNothingDeployed(t *testing.T) {
	fake := cmktest.NewCloud()
	fake.KeyPairs = append(fake.KeyPairs, &cmktest.KeyPair{Name: testDeployment + "-key"})

	summary, err := newSequencer(fake).Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Networks)
	assert.Empty(t, summary.Warnings)

	// the key pair is still cleaned up even without a network
	assert.Empty(t, fake.KeyPairs)
}

// A rerun after a partial teardown finds the volume already detached and
// the machines already gone; it finishes the job without spurious calls.
func Test_RunFinishesPartialTeardown(t *testing.T) {
	fake := cmktest.NewCloud()
	fake.Volumes = append(fake.Volumes, &cmktest.Volume{
		ID:     "vol-left",
		Name:   testDeployment + "-blob",
		SizeGB: 20,
		ZoneID: "zone-1",
		Tags:   map[string]string{"lunacloud-deploy-id": testDeployment},
	})
	fake.SnapshotPolicies = append(fake.SnapshotPolicies, &cmktest.SnapshotPolicy{
		ID:       "pol-left",
		VolumeID: "vol-left",
	})
	fake.KeyPairs = append(fake.KeyPairs, &cmktest.KeyPair{Name: testDeployment + "-key"})

	summary, err := newSequencer(fake).Run(context.Background(), "")
	require.NoError(t, err)

	assert.Empty(t, summary.Warnings)
	assert.Empty(t, fake.Volumes)
	assert.Empty(t, fake.SnapshotPolicies)
	assert.Empty(t, fake.KeyPairs)
	assert.Equal(t, 0, fake.MutationCount("detach volume"))
}

func Test_RunUnknownZone(t *testing.T) {
	fake := cmktest.NewCloud()
	seedDeployment(fake, "a", "zone-1")

	_, err := newSequencer(fake).Run(context.Background(), "ZP99")
	require.ErrorIs(t, err, cloud.ErrNotFound)

	// nothing was touched
	assert.Len(t, fake.Networks, 1)
	assert.Len(t, fake.VMs, 2)
	assert.Len(t, fake.KeyPairs, 1)
	assert.Empty(t, fake.Mutations)
}
