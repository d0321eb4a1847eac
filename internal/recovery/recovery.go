// Package recovery rebuilds a deployment's data volumes from snapshots,
// typically in a different zone after the original was lost. It only
// supplies the volume source; the rest of the topology is converged by the
// regular provisioning pipeline.
package recovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/lunacloud/stackctl/internal/models"
	"github.com/lunacloud/stackctl/internal/naming"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	ErrDeploymentExists   = errors.New("deployment already present in target zone")
	ErrNoBackedUpSnapshot = errors.New("no backed up snapshot available")
)

type CloudProvider interface {
	FindNetwork(ctx context.Context, name, zoneID string) (models.Network, bool, error)
	ListSnapshots(ctx context.Context, volumeName string) ([]models.Snapshot, error)
	CreateVolumeFromSnapshot(ctx context.Context, name, snapshotID, zoneID string) (models.Volume, error)
}

type Config struct {
	Cloud      CloudProvider
	Deployment string
	// Volumes lists the data volume names that must be restorable, derived
	// from the desired topology.
	Volumes []string
	Logger  zerolog.Logger
}

type Recovery struct {
	cloud      CloudProvider
	deployment string
	volumes    []string
	log        zerolog.Logger
}

func New(config Config) *Recovery {
	return &Recovery{
		cloud:      config.Cloud,
		deployment: config.Deployment,
		volumes:    config.Volumes,
		log:        config.Logger.With().Str("component", "recovery").Logger(),
	}
}

// Preflight verifies the target zone is safe to restore into: no network
// already carries the deployment name there, and every required volume has
// at least one backed up snapshot. It runs before the pipeline mutates
// anything, so a refused recovery leaves zero side effects.
func (r *Recovery) Preflight(ctx context.Context, zoneID string) error {
	_, found, err := r.cloud.FindNetwork(ctx, naming.Network(r.deployment), zoneID)
	if err != nil {
		return fmt.Errorf("failed to check for a conflicting network: %w", err)
	}
	if found {
		return fmt.Errorf("network %s in zone %s: %w", naming.Network(r.deployment), zoneID, ErrDeploymentExists)
	}

	for _, volume := range r.volumes {
		if _, err := r.latestSnapshot(ctx, volume); err != nil {
			return err
		}
	}

	r.log.Info().Strs("volumes", r.volumes).Msg("recovery preflight passed")

	return nil
}

// SeedVolume restores the named data volume from its newest backed up
// snapshot, manual or scheduled.
func (r *Recovery) SeedVolume(ctx context.Context, name, zoneID string) (models.Volume, error) {
	snapshot, err := r.latestSnapshot(ctx, name)
	if err != nil {
		return models.Volume{}, err
	}

	r.log.Info().
		Str("volume", name).
		Str("snapshot", snapshot.Name).
		Str("created", snapshot.Created).
		Msg("restoring volume from snapshot")

	volume, err := r.cloud.CreateVolumeFromSnapshot(ctx, name, snapshot.ID, zoneID)
	if err != nil {
		return models.Volume{}, err
	}

	return volume, nil
}

func (r *Recovery) latestSnapshot(ctx context.Context, volumeName string) (models.Snapshot, error) {
	snapshots, err := r.cloud.ListSnapshots(ctx, volumeName)
	if err != nil {
		return models.Snapshot{}, err
	}

	backedUp := lo.Filter(snapshots, func(snapshot models.Snapshot, _ int) bool {
		return snapshot.State == models.SnapshotStateBackedUp
	})
	if len(backedUp) == 0 {
		return models.Snapshot{}, fmt.Errorf("volume %s: %w", volumeName, ErrNoBackedUpSnapshot)
	}

	newest := lo.MaxBy(backedUp, func(a, b models.Snapshot) bool {
		return a.CreatedTime().After(b.CreatedTime())
	})

	return newest, nil
}
