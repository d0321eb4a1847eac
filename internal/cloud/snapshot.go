package cloud

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lunacloud/stackctl/internal/models"
)

func (c *Client) ListSnapshotPolicies(ctx context.Context, volumeID string) ([]models.SnapshotPolicy, error) {
	result, err := c.api.Execute(ctx, "list", "snapshotpolicies", "volumeid="+volumeID, "filter=id,volumeid")
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot policies: %w", err)
	}

	var policies []models.SnapshotPolicy
	if err := result.Decode("snapshotpolicy", &policies); err != nil {
		return nil, err
	}

	return policies, nil
}

func (c *Client) CreateSnapshotPolicy(ctx context.Context, params models.SnapshotPolicyParams) error {
	args := []string{
		"create", "snapshotpolicy",
		"volumeid=" + params.VolumeID,
		"intervaltype=daily",
		"schedule=" + params.Schedule,
		"maxsnaps=" + strconv.Itoa(params.MaxSnaps),
		"timezone=" + params.Timezone,
	}
	if len(params.Zones) > 0 {
		args = append(args, "zoneids="+strings.Join(params.Zones, ","))
	}
	if params.TagKey != "" {
		args = append(args, "tags[0].key="+params.TagKey, "tags[0].value="+params.TagValue)
	}

	if _, err := c.api.Execute(ctx, args...); err != nil {
		return fmt.Errorf("failed to create snapshot policy: %w", err)
	}

	return nil
}

func (c *Client) DeleteSnapshotPolicy(ctx context.Context, id string) error {
	if _, err := c.api.Execute(ctx, "delete", "snapshotpolicies", "id="+id); err != nil {
		return fmt.Errorf("failed to delete snapshot policy: %w", err)
	}

	return nil
}

// ListSnapshots returns every snapshot of the named volume, manual and
// scheduled alike. Snapshots outlive their volume, so the volume name is
// the only stable handle during recovery.
func (c *Client) ListSnapshots(ctx context.Context, volumeName string) ([]models.Snapshot, error) {
	result, err := c.api.Execute(ctx, "list", "snapshots", "filter=id,name,volumename,state,snapshottype,created")
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var snapshots []models.Snapshot
	if err := result.Decode("snapshot", &snapshots); err != nil {
		return nil, err
	}

	matching := make([]models.Snapshot, 0, len(snapshots))
	for _, snapshot := range snapshots {
		if snapshot.VolumeName == volumeName {
			matching = append(matching, snapshot)
		}
	}

	return matching, nil
}
