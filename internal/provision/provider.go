package provision

import (
	"context"
	"regexp"

	"github.com/lunacloud/stackctl/internal/models"
)

// The pipeline's view of the cloud API, grouped by concern. A single
// cloud.Client satisfies all of them.

type Resolver interface {
	ResolveZone(ctx context.Context, name string) (models.Zone, error)
	ResolveNetworkOffering(ctx context.Context, name string) (string, error)
	ResolveDiskOffering(ctx context.Context, name string) (string, error)
	ResolveServiceOffering(ctx context.Context, name string) (string, error)
	DiscoverTemplate(ctx context.Context, zoneID, keyword string, filter *regexp.Regexp) (models.Template, error)
}

type NetworkProvider interface {
	FindNetwork(ctx context.Context, name, zoneID string) (models.Network, bool, error)
	CreateNetwork(ctx context.Context, name, offeringID, zoneID string) (models.Network, error)
	FindKeyPair(ctx context.Context, name string) (bool, error)
	RegisterKeyPair(ctx context.Context, name, publicKey string) error
}

type ComputeProvider interface {
	FindVM(ctx context.Context, name string) (models.VirtualMachine, bool, error)
	DeployVM(ctx context.Context, params models.DeployVMParams) (models.VirtualMachine, error)
	StopVM(ctx context.Context, id string) error
	StartVM(ctx context.Context, id string) error
	ScaleVM(ctx context.Context, id, serviceOfferingID string) error
	DestroyVM(ctx context.Context, id string) error
	GetVMInternalIP(ctx context.Context, id string) (string, error)
}

type AddressProvider interface {
	ListPublicIPs(ctx context.Context, networkID string) ([]models.PublicIP, error)
	AssociateIP(ctx context.Context, networkID string) (models.PublicIP, error)
	EnableStaticNAT(ctx context.Context, ipID, vmID string) error
	DisableStaticNAT(ctx context.Context, ipID string) error
	ReleaseIP(ctx context.Context, ipID string) error
	ListFirewallRules(ctx context.Context, ipID string) ([]models.FirewallRule, error)
	CreateFirewallRule(ctx context.Context, ipID string, port int) error
	DeleteFirewallRule(ctx context.Context, id string) error
}

type StorageProvider interface {
	FindVolume(ctx context.Context, name string) (models.Volume, bool, error)
	CreateVolume(ctx context.Context, name, diskOfferingID, zoneID string, sizeGB int) (models.Volume, error)
	TagVolume(ctx context.Context, id, key, value string) error
	AttachVolume(ctx context.Context, id, vmID string) error
	ResizeVolume(ctx context.Context, id string, sizeGB int) error
	ListSnapshotPolicies(ctx context.Context, volumeID string) ([]models.SnapshotPolicy, error)
	CreateSnapshotPolicy(ctx context.Context, params models.SnapshotPolicyParams) error
}

type CloudProvider interface {
	Resolver
	NetworkProvider
	ComputeProvider
	AddressProvider
	StorageProvider
}

// Recoverer swaps the data volume source from blank allocation to snapshot
// restore. Preflight runs before the pipeline mutates anything.
type Recoverer interface {
	Preflight(ctx context.Context, zoneID string) error
	SeedVolume(ctx context.Context, name, zoneID string) (models.Volume, error)
}
