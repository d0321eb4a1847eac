package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/lunacloud/stackctl/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCloud struct {
	findNetwork        func(name, zoneID string) (models.Network, bool, error)
	listSnapshots      func(volumeName string) ([]models.Snapshot, error)
	createFromSnapshot func(name, snapshotID, zoneID string) (models.Volume, error)
}

func (s *stubCloud) FindNetwork(_ context.Context, name, zoneID string) (models.Network, bool, error) {
	return s.findNetwork(name, zoneID)
}

func (s *stubCloud) ListSnapshots(_ context.Context, volumeName string) ([]models.Snapshot, error) {
	return s.listSnapshots(volumeName)
}

func (s *stubCloud) CreateVolumeFromSnapshot(_ context.Context, name, snapshotID, zoneID string) (models.Volume, error) {
	return s.createFromSnapshot(name, snapshotID, zoneID)
}

func noNetwork(string, string) (models.Network, bool, error) {
	return models.Network{}, false, nil
}

func backedUpSnapshots(string) ([]models.Snapshot, error) {
	return []models.Snapshot{
		{ID: "snap-1", State: "BackedUp", Created: "2026-08-01T00:03:00-0300"},
	}, nil
}

func newRecovery(cloud *stubCloud, volumes ...string) *Recovery {
	return New(Config{
		Cloud:      cloud,
		Deployment: "shop-a1b2-preview",
		Volumes:    volumes,
		Logger:     zerolog.Nop(),
	})
}

func Test_Preflight(t *testing.T) {
	errAPI := errors.New("api down")

	testCases := []struct {
		name    string
		cloud   *stubCloud
		volumes []string
		err     error
	}{
		{
			name: "clear zone with snapshots",
			cloud: &stubCloud{
				findNetwork:   noNetwork,
				listSnapshots: backedUpSnapshots,
			},
			volumes: []string{"shop-a1b2-preview-blob"},
		},
		{
			name: "network already present",
			cloud: &stubCloud{
				findNetwork: func(name, zoneID string) (models.Network, bool, error) {
					return models.Network{ID: "net-1", Name: name, ZoneID: zoneID}, true, nil
				},
			},
			volumes: []string{"shop-a1b2-preview-blob"},
			err:     ErrDeploymentExists,
		},
		{
			name: "missing backed up snapshot",
			cloud: &stubCloud{
				findNetwork: noNetwork,
				listSnapshots: func(volumeName string) ([]models.Snapshot, error) {
					if volumeName == "shop-a1b2-preview-dbdata" {
						return []models.Snapshot{{ID: "snap-2", State: "Creating"}}, nil
					}
					return backedUpSnapshots(volumeName)
				},
			},
			volumes: []string{"shop-a1b2-preview-blob", "shop-a1b2-preview-dbdata"},
			err:     ErrNoBackedUpSnapshot,
		},
		{
			name: "lookup failure",
			cloud: &stubCloud{
				findNetwork: func(string, string) (models.Network, bool, error) {
					return models.Network{}, false, errAPI
				},
			},
			volumes: []string{"shop-a1b2-preview-blob"},
			err:     errAPI,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := newRecovery(tc.cloud, tc.volumes...).Preflight(context.Background(), "zone-2")
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_SeedVolumePicksNewestSnapshot(t *testing.T) {
	restored := ""

	cloud := &stubCloud{
		listSnapshots: func(string) ([]models.Snapshot, error) {
			return []models.Snapshot{
				{ID: "snap-daily", Type: "DAILY", State: "BackedUp", Created: "2026-08-19T00:03:00-0300"},
				{ID: "snap-manual", Type: "MANUAL", State: "BackedUp", Created: "2026-08-19T15:30:00-0300"},
				{ID: "snap-stale", Type: "DAILY", State: "BackedUp", Created: "2026-08-01T00:03:00-0300"},
				{ID: "snap-unfinished", Type: "DAILY", State: "Creating", Created: "2026-08-20T00:03:00-0300"},
			}, nil
		},
		createFromSnapshot: func(name, snapshotID, zoneID string) (models.Volume, error) {
			restored = snapshotID
			return models.Volume{ID: "vol-1", Name: name, Size: 20 << 30}, nil
		},
	}

	volume, err := newRecovery(cloud, "shop-a1b2-preview-blob").SeedVolume(context.Background(), "shop-a1b2-preview-blob", "zone-2")
	require.NoError(t, err)

	assert.Equal(t, "snap-manual", restored, "the newest backed up snapshot wins regardless of type")
	assert.Equal(t, "vol-1", volume.ID)
}

func Test_SeedVolumeWithoutSnapshots(t *testing.T) {
	cloud := &stubCloud{
		listSnapshots: func(string) ([]models.Snapshot, error) { return nil, nil },
	}

	_, err := newRecovery(cloud, "shop-a1b2-preview-blob").SeedVolume(context.Background(), "shop-a1b2-preview-blob", "zone-2")
	assert.ErrorIs(t, err, ErrNoBackedUpSnapshot)
}
