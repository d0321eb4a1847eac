// Package verify runs read-only checks against a provisioned deployment
// and reports whether the remote topology matches the desired state. It
// never mutates anything; a failed check is a verdict, not an error.
package verify

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lunacloud/stackctl/internal/models"
	"github.com/lunacloud/stackctl/internal/naming"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// MaxConcurrentChecks bounds the parallel lookups so verification never
// competes with the API rate limit it is supposed to observe quietly.
const MaxConcurrentChecks = 3

// ErrChecksFailed reports that the run finished but at least one check did
// not pass. The report carries the per-check verdicts.
var ErrChecksFailed = errors.New("verification checks failed")

// CloudProvider is the read-only slice of the cloud client the checks use.
type CloudProvider interface {
	FindNetwork(ctx context.Context, name, zoneID string) (models.Network, bool, error)
	FindKeyPair(ctx context.Context, name string) (bool, error)
	FindVM(ctx context.Context, name string) (models.VirtualMachine, bool, error)
	ListPublicIPs(ctx context.Context, networkID string) ([]models.PublicIP, error)
	ListFirewallRules(ctx context.Context, ipID string) ([]models.FirewallRule, error)
	FindVolume(ctx context.Context, name string) (models.Volume, bool, error)
	ListTaggedVolumes(ctx context.Context, tagKey, tagValue, zoneID string) ([]models.Volume, error)
	ListSnapshotPolicies(ctx context.Context, volumeID string) ([]models.SnapshotPolicy, error)
}

type Config struct {
	Cloud      CloudProvider
	Deployment string
	State      models.DesiredState
	VolumeTag  string
	Logger     zerolog.Logger
}

type Verifier struct {
	cloud      CloudProvider
	deployment string
	state      models.DesiredState
	volumeTag  string
	log        zerolog.Logger
}

func New(config Config) *Verifier {
	return &Verifier{
		cloud:      config.Cloud,
		deployment: config.Deployment,
		state:      config.State,
		volumeTag:  config.VolumeTag,
		log:        config.Logger.With().Str("component", "verify").Logger(),
	}
}

type probe func(ctx context.Context) ([]Check, error)

// Run executes every check and returns the report. The returned error is
// ErrChecksFailed when any check did not pass, or the underlying API error
// when a lookup itself failed; in both cases the report holds whatever was
// established before.
func (v *Verifier) Run(ctx context.Context) (Report, error) {
	report := Report{Deployment: v.deployment}

	networkName := naming.Network(v.deployment)

	network, found, err := v.cloud.FindNetwork(ctx, networkName, "")
	if err != nil {
		return report, err
	}

	if found {
		report.add(pass("network"))
	} else {
		report.add(fail("network", networkName+" not found"))
	}

	keyName := naming.KeyPair(v.deployment)

	keyFound, err := v.cloud.FindKeyPair(ctx, keyName)
	if err != nil {
		return report, err
	}

	if keyFound {
		report.add(pass("ssh key pair"))
	} else {
		report.add(fail("ssh key pair", keyName+" not found"))
	}

	// without the network every other lookup would fail for the same
	// reason, so stop here
	if !found {
		return report, report.err()
	}

	ips, err := v.cloud.ListPublicIPs(ctx, network.ID)
	if err != nil {
		return report, err
	}

	expected := 1 + v.state.Workers()
	if v.state.DBEnabled {
		expected++
	}

	if len(ips) == expected {
		report.add(pass("public address count"))
	} else {
		report.add(fail("public address count", fmt.Sprintf("expected %d, found %d", expected, len(ips))))
	}

	probes := []probe{}
	for _, spec := range v.machineSpecs() {
		spec := spec // per-iteration copy; required while built with pre-1.22 loop semantics
		probes = append(probes, func(ctx context.Context) ([]Check, error) {
			return v.checkMachine(ctx, spec, ips)
		})
	}
	for _, spec := range v.volumeSpecs() {
		spec := spec // per-iteration copy; required while built with pre-1.22 loop semantics
		probes = append(probes, func(ctx context.Context) ([]Check, error) {
			return v.checkVolume(ctx, spec)
		})
	}
	probes = append(probes, v.checkNoExtraWorkers)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(MaxConcurrentChecks)

	results := make([][]Check, len(probes))
	for index, check := range probes {
		index, check := index, check // per-iteration copies; required while built with pre-1.22 loop semantics
		group.Go(func() error {
			checks, err := check(groupCtx)
			if err != nil {
				return err
			}

			results[index] = checks

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return report, err
	}

	for _, checks := range results {
		report.add(checks...)
	}

	v.log.Info().
		Int("passed", report.Passed).
		Int("failed", report.Failed).
		Msg("verification finished")

	return report, report.err()
}

type machineSpec struct {
	role  string
	name  string
	plan  string
	ports []int
}

func (v *Verifier) machineSpecs() []machineSpec {
	specs := []machineSpec{{
		role:  "web",
		name:  naming.WebVM(v.deployment),
		plan:  v.state.WebPlan,
		ports: []int{22, 80, 443},
	}}

	for worker := 1; worker <= v.state.Workers(); worker++ {
		specs = append(specs, machineSpec{
			role:  fmt.Sprintf("worker-%d", worker),
			name:  naming.WorkerVM(v.deployment, worker),
			plan:  v.state.WorkersPlan,
			ports: []int{22},
		})
	}

	if v.state.DBEnabled {
		specs = append(specs, machineSpec{
			role:  "db",
			name:  naming.DBVM(v.deployment),
			plan:  v.state.DBPlan,
			ports: []int{22},
		})
	}

	return specs
}

func (v *Verifier) checkMachine(ctx context.Context, spec machineSpec, ips []models.PublicIP) ([]Check, error) {
	vm, found, err := v.cloud.FindVM(ctx, spec.name)
	if err != nil {
		return nil, err
	}

	if !found {
		return []Check{fail(spec.role+" virtual machine", spec.name+" not found")}, nil
	}

	checks := []Check{pass(spec.role + " virtual machine")}

	if vm.Running() {
		checks = append(checks, pass(spec.role+" running"))
	} else {
		checks = append(checks, fail(spec.role+" running", "state is "+vm.State))
	}

	if vm.ServiceOfferingName == spec.plan {
		checks = append(checks, pass(spec.role+" plan"))
	} else {
		checks = append(checks, fail(spec.role+" plan", fmt.Sprintf("expected %s, found %s", spec.plan, vm.ServiceOfferingName)))
	}

	ip, bound := lo.Find(ips, func(ip models.PublicIP) bool {
		return ip.StaticNAT && ip.VirtualMachineID == vm.ID
	})
	if !bound {
		checks = append(checks, fail(spec.role+" static nat", "no address bound"))
		return checks, nil
	}
	checks = append(checks, pass(spec.role+" static nat"))

	rules, err := v.cloud.ListFirewallRules(ctx, ip.ID)
	if err != nil {
		return nil, err
	}

	if actual := rulePorts(rules); portsEqual(actual, spec.ports) {
		checks = append(checks, pass(spec.role+" ingress ports"))
	} else {
		checks = append(checks, fail(spec.role+" ingress ports", fmt.Sprintf("expected %v, found %v", spec.ports, actual)))
	}

	return checks, nil
}

func (v *Verifier) checkNoExtraWorkers(ctx context.Context) ([]Check, error) {
	name := naming.WorkerVM(v.deployment, v.state.Workers()+1)

	_, found, err := v.cloud.FindVM(ctx, name)
	if err != nil {
		return nil, err
	}

	if found {
		return []Check{fail("no extra workers", name+" still exists")}, nil
	}

	return []Check{pass("no extra workers")}, nil
}

type volumeSpec struct {
	role   string
	name   string
	sizeGB int
}

func (v *Verifier) volumeSpecs() []volumeSpec {
	specs := []volumeSpec{{
		role:   "blob",
		name:   naming.BlobVolume(v.deployment),
		sizeGB: v.state.BlobDiskSizeGB,
	}}

	if v.state.DBEnabled {
		specs = append(specs, volumeSpec{
			role:   "dbdata",
			name:   naming.DBVolume(v.deployment),
			sizeGB: v.state.DBDiskSizeGB,
		})
	}

	return specs
}

func (v *Verifier) checkVolume(ctx context.Context, spec volumeSpec) ([]Check, error) {
	volume, found, err := v.cloud.FindVolume(ctx, spec.name)
	if err != nil {
		return nil, err
	}

	if !found {
		return []Check{fail(spec.role+" volume", spec.name+" not found")}, nil
	}

	checks := []Check{pass(spec.role + " volume")}

	if volume.Attached() {
		checks = append(checks, pass(spec.role+" attached"))
	} else {
		checks = append(checks, fail(spec.role+" attached", "volume is detached"))
	}

	// the desired size is a minimum, the volume may have grown since
	if volume.SizeGB() >= spec.sizeGB {
		checks = append(checks, pass(spec.role+" size"))
	} else {
		checks = append(checks, fail(spec.role+" size", fmt.Sprintf("%d GB below desired %d GB", volume.SizeGB(), spec.sizeGB)))
	}

	tagged, err := v.cloud.ListTaggedVolumes(ctx, v.volumeTag, v.deployment, "")
	if err != nil {
		return nil, err
	}

	if lo.ContainsBy(tagged, func(candidate models.Volume) bool { return candidate.ID == volume.ID }) {
		checks = append(checks, pass(spec.role+" tag"))
	} else {
		checks = append(checks, fail(spec.role+" tag", "deployment tag missing"))
	}

	policies, err := v.cloud.ListSnapshotPolicies(ctx, volume.ID)
	if err != nil {
		return nil, err
	}

	if len(policies) > 0 {
		checks = append(checks, pass(spec.role+" snapshot policy"))
	} else {
		checks = append(checks, fail(spec.role+" snapshot policy", "no policy attached"))
	}

	return checks, nil
}

func rulePorts(rules []models.FirewallRule) []int {
	ports := lo.Uniq(lo.Map(rules, func(rule models.FirewallRule, _ int) int {
		return int(rule.StartPort)
	}))
	sort.Ints(ports)

	return ports
}

// portsEqual compares the unique open ports against the expected set.
func portsEqual(actual, expected []int) bool {
	return len(actual) == len(expected) && lo.Every(actual, expected)
}
