package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/lunacloud/stackctl/internal/models"
	"github.com/lunacloud/stackctl/internal/naming"
	"github.com/lunacloud/stackctl/pkg/userdata"
	"github.com/rs/zerolog"
)

// ErrVolumeShrink reports a desired data volume size below the current one.
// The provider cannot shrink volumes and silently ignoring the request
// would leave the state file lying, so the run stops instead.
var ErrVolumeShrink = errors.New("volume shrink is not supported")

type Config struct {
	Cloud       CloudProvider
	Recovery    Recoverer
	Deployment  string
	State       models.DesiredState
	Catalog     models.Catalog
	Snapshots   models.SnapshotPlan
	VolumeTag   string
	PublicKey   string
	WebUserdata userdata.Script
	DBUserdata  userdata.Script
	Logger      zerolog.Logger
}

// Provisioner converges the remote deployment onto the desired state. Every
// step follows the same contract: look the resource up under its
// deterministic name, create it only on a miss, and repair drift in place.
// Re-running after any interruption is always safe.
type Provisioner struct {
	cloud       CloudProvider
	recovery    Recoverer
	deployment  string
	state       models.DesiredState
	catalog     models.Catalog
	snapshots   models.SnapshotPlan
	volumeTag   string
	publicKey   string
	webUserdata string
	dbUserdata  string
	log         zerolog.Logger
}

func New(config Config) *Provisioner {
	return &Provisioner{
		cloud:       config.Cloud,
		recovery:    config.Recovery,
		deployment:  config.Deployment,
		state:       config.State,
		catalog:     config.Catalog,
		snapshots:   config.Snapshots,
		volumeTag:   config.VolumeTag,
		publicKey:   config.PublicKey,
		webUserdata: config.WebUserdata.Base64(),
		dbUserdata:  config.DBUserdata.Base64(),
		log:         config.Logger.With().Str("component", "provision").Logger(),
	}
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

// Run executes the reconciliation pipeline and returns the output
// descriptor. Any error aborts the run; the remote state stays valid for
// the next attempt because no step depends on this process's memory.
func (p *Provisioner) Run(ctx context.Context) (models.Descriptor, error) {
	r := &run{Provisioner: p}

	steps := []step{
		{name: "catalog", run: r.resolveCatalog},
		{name: "recovery preflight", run: r.preflight},
		{name: "network", run: r.ensureNetwork},
		{name: "ssh key pair", run: r.ensureKeyPair},
		{name: "worker trim", run: r.trimWorkers},
		{name: "virtual machines", run: r.ensureVMs},
		{name: "compute scaling", run: r.scaleVMs},
		{name: "public addresses", run: r.assignAddresses},
		{name: "firewall", run: r.ensureFirewall},
		{name: "data volumes", run: r.ensureDisks},
		{name: "snapshot policies", run: r.ensureSnapshotPolicies},
		{name: "output descriptor", run: r.buildDescriptor},
	}

	for _, step := range steps {
		p.log.Debug().Str("step", step.name).Msg("reconciling")

		if err := step.run(ctx); err != nil {
			return models.Descriptor{}, fmt.Errorf("failed to reconcile %s: %w", step.name, err)
		}
	}

	return r.descriptor, nil
}

// run holds the state threaded through one pipeline execution.
type run struct {
	*Provisioner

	zone           models.Zone
	template       models.Template
	diskOfferingID string
	offerings      offeringSet
	network        models.Network
	web            models.VirtualMachine
	workers        []models.VirtualMachine
	db             models.VirtualMachine
	webIP          models.PublicIP
	workerIPs      []models.PublicIP
	dbIP           models.PublicIP
	volumeIDs      []string
	descriptor     models.Descriptor
}

type offeringSet struct {
	network string
	web     string
	worker  string
	db      string
}

// resolveCatalog turns every name in the desired state and the catalog into
// provider IDs. Only lookups happen here, so a bad plan or zone fails the
// run before anything is touched.
func (r *run) resolveCatalog(ctx context.Context) error {
	zone, err := r.cloud.ResolveZone(ctx, r.state.Zone)
	if err != nil {
		return err
	}
	r.zone = zone

	if r.offerings.network, err = r.cloud.ResolveNetworkOffering(ctx, r.catalog.NetworkOffering); err != nil {
		return err
	}

	if r.diskOfferingID, err = r.cloud.ResolveDiskOffering(ctx, r.catalog.DiskOffering); err != nil {
		return err
	}

	if r.offerings.web, err = r.cloud.ResolveServiceOffering(ctx, r.state.WebPlan); err != nil {
		return err
	}

	if r.state.WorkersEnabled {
		if r.offerings.worker, err = r.cloud.ResolveServiceOffering(ctx, r.state.WorkersPlan); err != nil {
			return err
		}
	}

	if r.state.DBEnabled {
		if r.offerings.db, err = r.cloud.ResolveServiceOffering(ctx, r.state.DBPlan); err != nil {
			return err
		}
	}

	template, err := r.cloud.DiscoverTemplate(ctx, zone.ID, r.catalog.TemplateKeyword, r.catalog.TemplateFilter)
	if err != nil {
		return err
	}
	r.template = template

	r.log.Debug().
		Str("zone", zone.ID).
		Str("template", template.Name).
		Msg("resolved provider catalog")

	return nil
}

func (r *run) preflight(ctx context.Context) error {
	if r.recovery == nil {
		return nil
	}

	return r.recovery.Preflight(ctx, r.zone.ID)
}

func (r *run) ensureNetwork(ctx context.Context) error {
	name := naming.Network(r.deployment)

	network, existed, err := ensure(ctx,
		func(ctx context.Context) (models.Network, bool, error) {
			return r.cloud.FindNetwork(ctx, name, r.zone.ID)
		},
		func(ctx context.Context) (models.Network, error) {
			return r.cloud.CreateNetwork(ctx, name, r.offerings.network, r.zone.ID)
		},
	)
	if err != nil {
		return err
	}
	r.network = network

	r.logEnsured("network", name, existed)

	return nil
}

func (r *run) ensureKeyPair(ctx context.Context) error {
	name := naming.KeyPair(r.deployment)

	found, err := r.cloud.FindKeyPair(ctx, name)
	if err != nil {
		return err
	}

	if !found {
		if err := r.cloud.RegisterKeyPair(ctx, name, r.publicKey); err != nil && !isAlreadyExists(err) {
			return err
		}
	}

	r.logEnsured("ssh key pair", name, found)

	return nil
}

func (r *run) logEnsured(kind, name string, existed bool) {
	if existed {
		r.log.Debug().Str("name", name).Msgf("%s already exists", kind)
		return
	}

	r.log.Info().Str("name", name).Msgf("created %s", kind)
}
