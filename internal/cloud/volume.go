package cloud

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lunacloud/stackctl/internal/models"
)

func (c *Client) FindVolume(ctx context.Context, name string) (models.Volume, bool, error) {
	result, err := c.api.Execute(ctx,
		"list", "volumes",
		"name="+name,
		"type=DATADISK",
		"filter=id,name,size,state,virtualmachineid",
	)
	if err != nil {
		return models.Volume{}, false, fmt.Errorf("failed to list volumes: %w", err)
	}

	var volumes []models.Volume
	if err := result.Decode("volume", &volumes); err != nil {
		return models.Volume{}, false, err
	}

	for _, volume := range volumes {
		if volume.Name == name {
			return volume, true, nil
		}
	}

	return models.Volume{}, false, nil
}

// ListTaggedVolumes finds every data volume carrying the deployment tag,
// which is how teardown discovers disks even after their machines are gone.
func (c *Client) ListTaggedVolumes(ctx context.Context, tagKey, tagValue, zoneID string) ([]models.Volume, error) {
	args := []string{
		"list", "volumes",
		"type=DATADISK",
		"tags[0].key=" + tagKey,
		"tags[0].value=" + tagValue,
		"filter=id,name,virtualmachineid",
	}
	if zoneID != "" {
		args = append(args, "zoneid="+zoneID)
	}

	result, err := c.api.Execute(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}

	var volumes []models.Volume
	if err := result.Decode("volume", &volumes); err != nil {
		return nil, err
	}

	return volumes, nil
}

func (c *Client) CreateVolume(ctx context.Context, name, diskOfferingID, zoneID string, sizeGB int) (models.Volume, error) {
	result, err := c.api.Execute(ctx,
		"create", "volume",
		"name="+name,
		"diskofferingid="+diskOfferingID,
		"zoneid="+zoneID,
		"size="+strconv.Itoa(sizeGB),
	)
	if err != nil {
		return models.Volume{}, fmt.Errorf("failed to create volume: %w", err)
	}

	var volume models.Volume
	if err := result.Decode("volume", &volume); err != nil {
		return models.Volume{}, err
	}

	return volume, nil
}

// CreateVolumeFromSnapshot restores a data volume; size and content come
// from the snapshot.
func (c *Client) CreateVolumeFromSnapshot(ctx context.Context, name, snapshotID, zoneID string) (models.Volume, error) {
	result, err := c.api.Execute(ctx,
		"create", "volume",
		"name="+name,
		"snapshotid="+snapshotID,
		"zoneid="+zoneID,
	)
	if err != nil {
		return models.Volume{}, fmt.Errorf("failed to create volume from snapshot: %w", err)
	}

	var volume models.Volume
	if err := result.Decode("volume", &volume); err != nil {
		return models.Volume{}, err
	}

	return volume, nil
}

func (c *Client) TagVolume(ctx context.Context, id, key, value string) error {
	_, err := c.api.Execute(ctx,
		"create", "tags",
		"resourceids="+id,
		"resourcetype=Volume",
		"tags[0].key="+key,
		"tags[0].value="+value,
	)
	if err != nil {
		return fmt.Errorf("failed to tag volume: %w", err)
	}

	return nil
}

func (c *Client) AttachVolume(ctx context.Context, id, vmID string) error {
	if _, err := c.api.Execute(ctx, "attach", "volume", "id="+id, "virtualmachineid="+vmID); err != nil {
		return fmt.Errorf("failed to attach volume: %w", err)
	}

	return nil
}

func (c *Client) DetachVolume(ctx context.Context, id string) error {
	if _, err := c.api.Execute(ctx, "detach", "volume", "id="+id); err != nil {
		return fmt.Errorf("failed to detach volume: %w", err)
	}

	return nil
}

func (c *Client) ResizeVolume(ctx context.Context, id string, sizeGB int) error {
	if _, err := c.api.Execute(ctx, "resize", "volume", "id="+id, "size="+strconv.Itoa(sizeGB)); err != nil {
		return fmt.Errorf("failed to resize volume: %w", err)
	}

	return nil
}

func (c *Client) DeleteVolume(ctx context.Context, id string) error {
	if _, err := c.api.Execute(ctx, "delete", "volume", "id="+id); err != nil {
		return fmt.Errorf("failed to delete volume: %w", err)
	}

	return nil
}
