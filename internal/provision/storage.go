package provision

import (
	"context"
	"fmt"

	"github.com/lunacloud/stackctl/internal/models"
	"github.com/lunacloud/stackctl/internal/naming"
)

func (r *run) ensureDisks(ctx context.Context) error {
	if err := r.ensureDisk(ctx, naming.BlobVolume(r.deployment), r.state.BlobDiskSizeGB, r.web.ID); err != nil {
		return err
	}

	if r.state.DBEnabled {
		if err := r.ensureDisk(ctx, naming.DBVolume(r.deployment), r.state.DBDiskSizeGB, r.db.ID); err != nil {
			return err
		}
	}

	return nil
}

// ensureDisk converges one data volume. Fresh volumes are created blank, or
// restored from the newest snapshot in recovery mode, then tagged with the
// deployment ID and attached. Existing volumes only ever grow: the desired
// size below the current one stops the run before any resize is issued.
func (r *run) ensureDisk(ctx context.Context, name string, sizeGB int, vmID string) error {
	volume, existed, err := ensure(ctx,
		func(ctx context.Context) (models.Volume, bool, error) {
			return r.cloud.FindVolume(ctx, name)
		},
		func(ctx context.Context) (models.Volume, error) {
			if r.recovery != nil {
				return r.recovery.SeedVolume(ctx, name, r.zone.ID)
			}

			return r.cloud.CreateVolume(ctx, name, r.diskOfferingID, r.zone.ID, sizeGB)
		},
	)
	if err != nil {
		return err
	}

	if !existed {
		if err := r.cloud.TagVolume(ctx, volume.ID, r.volumeTag, r.deployment); err != nil {
			return err
		}

		if err := r.cloud.AttachVolume(ctx, volume.ID, vmID); err != nil {
			return err
		}

		r.logEnsured("data volume", name, false)
		r.volumeIDs = append(r.volumeIDs, volume.ID)

		return nil
	}

	switch current := volume.SizeGB(); {
	case sizeGB < current:
		return fmt.Errorf("volume %s holds %d GB, desired %d GB: %w", name, current, sizeGB, ErrVolumeShrink)
	case sizeGB > current:
		if err := r.cloud.ResizeVolume(ctx, volume.ID, sizeGB); err != nil {
			return err
		}
		r.log.Info().Str("name", name).Int("from_gb", current).Int("to_gb", sizeGB).Msg("grew data volume")
	}

	if !volume.Attached() {
		if err := r.cloud.AttachVolume(ctx, volume.ID, vmID); err != nil {
			return err
		}
		r.log.Info().Str("name", name).Msg("reattached data volume")
	}

	r.volumeIDs = append(r.volumeIDs, volume.ID)

	return nil
}

// ensureSnapshotPolicies attaches the daily snapshot policy to every data
// volume that lacks one, including volumes just restored during recovery.
func (r *run) ensureSnapshotPolicies(ctx context.Context) error {
	for _, volumeID := range r.volumeIDs {
		policies, err := r.cloud.ListSnapshotPolicies(ctx, volumeID)
		if err != nil {
			return err
		}

		if len(policies) > 0 {
			continue
		}

		err = r.cloud.CreateSnapshotPolicy(ctx, models.SnapshotPolicyParams{
			VolumeID: volumeID,
			Schedule: r.snapshots.Schedule,
			MaxSnaps: r.snapshots.MaxSnaps,
			Timezone: r.snapshots.Timezone,
			Zones:    r.snapshots.Zones,
			TagKey:   r.volumeTag,
			TagValue: r.deployment,
		})
		if err != nil {
			return err
		}

		r.log.Info().Str("volume", volumeID).Msg("attached snapshot policy")
	}

	return nil
}

// buildDescriptor collects the addresses the deployment tooling needs. The
// db internal address is re-read from the provider; the record cached from
// an earlier step may predate addressing.
func (r *run) buildDescriptor(ctx context.Context) error {
	workerIPs := make([]string, 0, len(r.workerIPs))
	for _, ip := range r.workerIPs {
		workerIPs = append(workerIPs, ip.IPAddress)
	}

	descriptor := models.Descriptor{
		WebIP:     r.webIP.IPAddress,
		WorkerIPs: workerIPs,
	}

	if r.state.DBEnabled {
		public := r.dbIP.IPAddress
		descriptor.DBIP = &public

		internal, err := r.cloud.GetVMInternalIP(ctx, r.db.ID)
		if err != nil {
			return err
		}
		descriptor.DBInternalIP = &internal
	}

	r.descriptor = descriptor

	return nil
}
