// Package cmktest provides an in-memory CloudStack double that speaks the
// CLI's JSON dialect. It implements cmk.Runner, so tests drive the real
// executor and client against scripted remote state, and it enforces the
// provider rules the engine has to respect: duplicate names are rejected,
// running machines cannot be scaled, attached volumes cannot be deleted.
package cmktest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

type Zone struct {
	ID   string
	Name string
}

type Offering struct {
	ID   string
	Name string
}

type Template struct {
	ID      string
	Name    string
	Created string
}

type Network struct {
	ID     string
	Name   string
	ZoneID string
}

type KeyPair struct {
	Name      string
	PublicKey string
}

type VM struct {
	ID                  string
	Name                string
	State               string
	ServiceOfferingID   string
	ServiceOfferingName string
	NetworkID           string
	ZoneID              string
	IP                  string
	Userdata            string
}

type PublicIP struct {
	ID        string
	Address   string
	NetworkID string
	SourceNAT bool
	StaticNAT bool
	VMID      string
}

type FirewallRule struct {
	ID        string
	IPID      string
	StartPort int
	EndPort   int
}

type Volume struct {
	ID     string
	Name   string
	SizeGB int
	ZoneID string
	VMID   string
	Tags   map[string]string
}

type SnapshotPolicy struct {
	ID       string
	VolumeID string
}

type Snapshot struct {
	ID         string
	Name       string
	VolumeName string
	State      string
	Type       string
	Created    string
	SizeGB     int
}

type failure struct {
	prefix  string
	message string
}

var errExit = errors.New("exit status 1")

// Cloud is the fake provider state. Fields are exported so tests can seed
// fixtures and assert on the outcome directly.
type Cloud struct {
	mu sync.Mutex

	Zones            []Zone
	ServiceOfferings []Offering
	NetworkOfferings []Offering
	DiskOfferings    []Offering
	Templates        []Template
	Networks         []*Network
	KeyPairs         []*KeyPair
	VMs              []*VM
	PublicIPs        []*PublicIP
	FirewallRules    []*FirewallRule
	Volumes          []*Volume
	SnapshotPolicies []*SnapshotPolicy
	Snapshots        []Snapshot

	// Calls records every command, Mutations only the non-list ones.
	Calls     []string
	Mutations []string

	failures []failure
	nextID   int
}

// NewCloud returns a fake seeded with the provider catalog the engine
// expects: two zones, three plans, the guest network offering, the data
// disk offering and a featured Ubuntu template.
func NewCloud() *Cloud {
	return &Cloud{
		Zones: []Zone{
			{ID: "zone-1", Name: "ZP01"},
			{ID: "zone-2", Name: "ZP02"},
		},
		ServiceOfferings: []Offering{
			{ID: "so-small", Name: "small"},
			{ID: "so-medium", Name: "medium"},
			{ID: "so-large", Name: "large"},
		},
		NetworkOfferings: []Offering{
			{ID: "no-1", Name: "Default Guest Network"},
		},
		DiskOfferings: []Offering{
			{ID: "do-1", Name: "data.disk.general"},
		},
		Templates: []Template{
			{ID: "tmpl-1", Name: "Ubuntu 24.04 LTS", Created: "2026-05-01T10:00:00-0300"},
			{ID: "tmpl-2", Name: "Ubuntu 22.04 LTS", Created: "2026-06-01T10:00:00-0300"},
		},
	}
}

// FailWith makes every command starting with prefix fail with the given
// diagnostic until ClearFailures is called.
func (c *Cloud) FailWith(prefix, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures = append(c.failures, failure{prefix: prefix, message: message})
}

func (c *Cloud) ClearFailures() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures = nil
}

// Reset clears the recorded calls and mutations, keeping the state.
func (c *Cloud) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = nil
	c.Mutations = nil
}

func (c *Cloud) MutationCount(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, mutation := range c.Mutations {
		if strings.HasPrefix(mutation, prefix) {
			count++
		}
	}

	return count
}

func (c *Cloud) VM(name string) *VM {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, vm := range c.VMs {
		if vm.Name == name {
			return vm
		}
	}

	return nil
}

func (c *Cloud) Network(name string) *Network {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, network := range c.Networks {
		if network.Name == name {
			return network
		}
	}

	return nil
}

func (c *Cloud) Volume(name string) *Volume {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, volume := range c.Volumes {
		if volume.Name == name {
			return volume
		}
	}

	return nil
}

func (c *Cloud) KeyPair(name string) *KeyPair {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, pair := range c.KeyPairs {
		if pair.Name == name {
			return pair
		}
	}

	return nil
}

// Run implements cmk.Runner.
func (c *Cloud) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(args) >= 2 && args[0] == "-o" && args[1] == "json" {
		args = args[2:]
	}

	command := strings.Join(args, " ")
	c.Calls = append(c.Calls, command)

	for _, failure := range c.failures {
		if strings.HasPrefix(command, failure.prefix) {
			return nil, []byte(failure.message), errExit
		}
	}

	if len(args) < 2 {
		return nil, []byte("unknown command: " + command), errExit
	}

	verb, kind := args[0], args[1]
	params := parseParams(args[2:])

	if verb != "list" {
		c.Mutations = append(c.Mutations, command)
	}

	payload, err := c.dispatch(verb+" "+kind, params)
	if err != nil {
		return nil, []byte(err.Error()), errExit
	}

	if payload == nil {
		return nil, nil, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, []byte(err.Error()), errExit
	}

	return data, nil, nil
}

func parseParams(args []string) map[string]string {
	params := map[string]string{}
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if found {
			params[key] = value
		}
	}

	return params
}

func (c *Cloud) id(prefix string) string {
	c.nextID++
	return fmt.Sprintf("%s-%d", prefix, c.nextID)
}

func listing(section string, items []map[string]any) map[string]any {
	if len(items) == 0 {
		return map[string]any{"count": 0}
	}

	return map[string]any{"count": len(items), section: items}
}

func (c *Cloud) dispatch(command string, params map[string]string) (any, error) {
	switch command {
	case "list zones":
		return c.listZones(params), nil
	case "list serviceofferings":
		return offeringListing("serviceoffering", c.ServiceOfferings), nil
	case "list networkofferings":
		return offeringListing("networkoffering", c.NetworkOfferings), nil
	case "list diskofferings":
		return offeringListing("diskoffering", c.DiskOfferings), nil
	case "list templates":
		return c.listTemplates(), nil
	case "list networks":
		return c.listNetworks(params), nil
	case "create network":
		return c.createNetwork(params)
	case "delete network":
		return c.deleteNetwork(params)
	case "list sshkeypairs":
		return c.listKeyPairs(params), nil
	case "register sshkeypair":
		return c.registerKeyPair(params)
	case "delete sshkeypair":
		return c.deleteKeyPair(params)
	case "list virtualmachines":
		return c.listVMs(params), nil
	case "deploy virtualmachine":
		return c.deployVM(params)
	case "stop virtualmachine":
		return c.setVMState(params, "Stopped")
	case "start virtualmachine":
		return c.setVMState(params, "Running")
	case "scale virtualmachine":
		return c.scaleVM(params)
	case "destroy virtualmachine":
		return c.destroyVM(params)
	case "list publicipaddresses":
		return c.listPublicIPs(params), nil
	case "associate ipaddress":
		return c.associateIP(params)
	case "disassociate ipaddress":
		return c.disassociateIP(params)
	case "enable staticnat":
		return c.enableStaticNAT(params)
	case "disable staticnat":
		return c.disableStaticNAT(params)
	case "list firewallrules":
		return c.listFirewallRules(params), nil
	case "create firewallrule":
		return c.createFirewallRule(params)
	case "delete firewallrule":
		return c.deleteFirewallRule(params)
	case "list volumes":
		return c.listVolumes(params), nil
	case "create volume":
		return c.createVolume(params)
	case "resize volume":
		return c.resizeVolume(params)
	case "attach volume":
		return c.attachVolume(params)
	case "detach volume":
		return c.detachVolume(params)
	case "delete volume":
		return c.deleteVolume(params)
	case "create tags":
		return c.createTags(params)
	case "list snapshotpolicies":
		return c.listSnapshotPolicies(params), nil
	case "create snapshotpolicy":
		return c.createSnapshotPolicy(params)
	case "delete snapshotpolicies":
		return c.deleteSnapshotPolicy(params)
	case "list snapshots":
		return c.listSnapshots(), nil
	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}
}

func (c *Cloud) listZones(params map[string]string) any {
	items := []map[string]any{}
	for _, zone := range c.Zones {
		if name := params["name"]; name != "" && !strings.Contains(zone.Name, name) {
			continue
		}
		items = append(items, map[string]any{"id": zone.ID, "name": zone.Name})
	}

	return listing("zone", items)
}

func offeringListing(section string, offerings []Offering) any {
	items := []map[string]any{}
	for _, offering := range offerings {
		items = append(items, map[string]any{"id": offering.ID, "name": offering.Name})
	}

	return listing(section, items)
}

func (c *Cloud) listTemplates() any {
	items := []map[string]any{}
	for _, template := range c.Templates {
		items = append(items, map[string]any{
			"id":      template.ID,
			"name":    template.Name,
			"created": template.Created,
		})
	}

	return listing("template", items)
}

func (c *Cloud) listNetworks(params map[string]string) any {
	items := []map[string]any{}
	for _, network := range c.Networks {
		if zoneID := params["zoneid"]; zoneID != "" && network.ZoneID != zoneID {
			continue
		}
		items = append(items, map[string]any{
			"id":     network.ID,
			"name":   network.Name,
			"zoneid": network.ZoneID,
		})
	}

	return listing("network", items)
}

func (c *Cloud) createNetwork(params map[string]string) (any, error) {
	name := params["name"]
	for _, network := range c.Networks {
		if network.Name == name {
			return nil, fmt.Errorf("network with name %s already exists", name)
		}
	}

	if !c.hasOffering(c.NetworkOfferings, params["networkofferingid"]) {
		return nil, fmt.Errorf("unable to find network offering %s", params["networkofferingid"])
	}

	network := &Network{ID: c.id("net"), Name: name, ZoneID: params["zoneid"]}
	c.Networks = append(c.Networks, network)

	// isolated networks come with a provider-managed source NAT address
	c.PublicIPs = append(c.PublicIPs, &PublicIP{
		ID:        c.id("ip"),
		Address:   fmt.Sprintf("203.0.113.%d", c.nextID),
		NetworkID: network.ID,
		SourceNAT: true,
	})

	return map[string]any{"network": map[string]any{
		"id":     network.ID,
		"name":   network.Name,
		"zoneid": network.ZoneID,
	}}, nil
}

func (c *Cloud) deleteNetwork(params map[string]string) (any, error) {
	id := params["id"]
	for _, vm := range c.VMs {
		if vm.NetworkID == id {
			return nil, fmt.Errorf("failed to delete network %s: virtual machine %s is still deployed in it", id, vm.Name)
		}
	}

	for index, network := range c.Networks {
		if network.ID == id {
			c.Networks = append(c.Networks[:index], c.Networks[index+1:]...)

			remaining := c.PublicIPs[:0]
			for _, ip := range c.PublicIPs {
				if ip.NetworkID != id {
					remaining = append(remaining, ip)
				}
			}
			c.PublicIPs = remaining

			return nil, nil
		}
	}

	return nil, fmt.Errorf("unable to find network %s", id)
}

func (c *Cloud) listKeyPairs(params map[string]string) any {
	items := []map[string]any{}
	for _, pair := range c.KeyPairs {
		if name := params["name"]; name != "" && !strings.Contains(pair.Name, name) {
			continue
		}
		items = append(items, map[string]any{"name": pair.Name})
	}

	return listing("sshkeypair", items)
}

func (c *Cloud) registerKeyPair(params map[string]string) (any, error) {
	name := params["name"]
	for _, pair := range c.KeyPairs {
		if pair.Name == name {
			return nil, fmt.Errorf("a key pair with name %s already exists", name)
		}
	}

	c.KeyPairs = append(c.KeyPairs, &KeyPair{Name: name, PublicKey: params["publickey"]})

	return map[string]any{"keypair": map[string]any{"name": name}}, nil
}

func (c *Cloud) deleteKeyPair(params map[string]string) (any, error) {
	name := params["name"]
	for index, pair := range c.KeyPairs {
		if pair.Name == name {
			c.KeyPairs = append(c.KeyPairs[:index], c.KeyPairs[index+1:]...)
			return nil, nil
		}
	}

	return nil, fmt.Errorf("unable to find key pair %s", name)
}

func (c *Cloud) listVMs(params map[string]string) any {
	items := []map[string]any{}
	for _, vm := range c.VMs {
		if id := params["id"]; id != "" && vm.ID != id {
			continue
		}
		// the real list API matches names loosely
		if name := params["name"]; name != "" && !strings.Contains(vm.Name, name) {
			continue
		}
		if networkID := params["networkid"]; networkID != "" && vm.NetworkID != networkID {
			continue
		}

		items = append(items, map[string]any{
			"id":                  vm.ID,
			"name":                vm.Name,
			"state":               vm.State,
			"serviceofferingid":   vm.ServiceOfferingID,
			"serviceofferingname": vm.ServiceOfferingName,
			"nic":                 []map[string]any{{"ipaddress": vm.IP}},
		})
	}

	return listing("virtualmachine", items)
}

func (c *Cloud) deployVM(params map[string]string) (any, error) {
	name := params["name"]
	for _, vm := range c.VMs {
		if vm.Name == name {
			return nil, fmt.Errorf("virtual machine with name %s already exists", name)
		}
	}

	offering, found := c.serviceOffering(params["serviceofferingid"])
	if !found {
		return nil, fmt.Errorf("unable to find service offering %s", params["serviceofferingid"])
	}

	if c.keyPairByName(params["keypair"]) == nil {
		return nil, fmt.Errorf("unable to find key pair %s", params["keypair"])
	}

	network, found := c.network(params["networkids"])
	if !found {
		return nil, fmt.Errorf("unable to find network %s", params["networkids"])
	}

	vm := &VM{
		ID:                  c.id("vm"),
		Name:                name,
		State:               "Running",
		ServiceOfferingID:   offering.ID,
		ServiceOfferingName: offering.Name,
		NetworkID:           network.ID,
		ZoneID:              params["zoneid"],
		IP:                  fmt.Sprintf("10.1.1.%d", c.nextID),
		Userdata:            params["userdata"],
	}
	c.VMs = append(c.VMs, vm)

	return map[string]any{"virtualmachine": map[string]any{
		"id":                  vm.ID,
		"name":                vm.Name,
		"state":               vm.State,
		"serviceofferingid":   vm.ServiceOfferingID,
		"serviceofferingname": vm.ServiceOfferingName,
		"nic":                 []map[string]any{{"ipaddress": vm.IP}},
	}}, nil
}

func (c *Cloud) setVMState(params map[string]string, state string) (any, error) {
	vm, found := c.vm(params["id"])
	if !found {
		return nil, fmt.Errorf("unable to find virtual machine %s", params["id"])
	}

	vm.State = state

	return map[string]any{"virtualmachine": map[string]any{"id": vm.ID, "state": vm.State}}, nil
}

func (c *Cloud) scaleVM(params map[string]string) (any, error) {
	vm, found := c.vm(params["id"])
	if !found {
		return nil, fmt.Errorf("unable to find virtual machine %s", params["id"])
	}

	if vm.State != "Stopped" {
		return nil, fmt.Errorf("failed to scale virtual machine %s: the machine should be stopped", vm.Name)
	}

	offering, found := c.serviceOffering(params["serviceofferingid"])
	if !found {
		return nil, fmt.Errorf("unable to find service offering %s", params["serviceofferingid"])
	}

	vm.ServiceOfferingID = offering.ID
	vm.ServiceOfferingName = offering.Name

	return map[string]any{"virtualmachine": map[string]any{"id": vm.ID}}, nil
}

func (c *Cloud) destroyVM(params map[string]string) (any, error) {
	id := params["id"]
	for index, vm := range c.VMs {
		if vm.ID != id {
			continue
		}

		c.VMs = append(c.VMs[:index], c.VMs[index+1:]...)

		// expunging detaches data disks but never deletes them
		for _, volume := range c.Volumes {
			if volume.VMID == id {
				volume.VMID = ""
			}
		}

		return nil, nil
	}

	return nil, fmt.Errorf("unable to find virtual machine %s", id)
}

func (c *Cloud) listPublicIPs(params map[string]string) any {
	items := []map[string]any{}
	for _, ip := range c.PublicIPs {
		if networkID := params["associatednetworkid"]; networkID != "" && ip.NetworkID != networkID {
			continue
		}

		items = append(items, map[string]any{
			"id":               ip.ID,
			"ipaddress":        ip.Address,
			"issourcenat":      ip.SourceNAT,
			"isstaticnat":      ip.StaticNAT,
			"virtualmachineid": ip.VMID,
		})
	}

	return listing("publicipaddress", items)
}

func (c *Cloud) associateIP(params map[string]string) (any, error) {
	if _, found := c.network(params["networkid"]); !found {
		return nil, fmt.Errorf("unable to find network %s", params["networkid"])
	}

	ip := &PublicIP{
		ID:        c.id("ip"),
		Address:   fmt.Sprintf("203.0.113.%d", c.nextID),
		NetworkID: params["networkid"],
	}
	c.PublicIPs = append(c.PublicIPs, ip)

	return map[string]any{"ipaddress": map[string]any{
		"id":          ip.ID,
		"ipaddress":   ip.Address,
		"issourcenat": false,
		"isstaticnat": false,
	}}, nil
}

func (c *Cloud) disassociateIP(params map[string]string) (any, error) {
	id := params["id"]
	for index, ip := range c.PublicIPs {
		if ip.ID != id {
			continue
		}

		if ip.SourceNAT {
			return nil, fmt.Errorf("ip address %s is the source nat address and cannot be released", ip.Address)
		}

		c.PublicIPs = append(c.PublicIPs[:index], c.PublicIPs[index+1:]...)

		remaining := c.FirewallRules[:0]
		for _, rule := range c.FirewallRules {
			if rule.IPID != id {
				remaining = append(remaining, rule)
			}
		}
		c.FirewallRules = remaining

		return nil, nil
	}

	return nil, fmt.Errorf("unable to find ip address %s", id)
}

func (c *Cloud) enableStaticNAT(params map[string]string) (any, error) {
	ip, found := c.publicIP(params["ipaddressid"])
	if !found {
		return nil, fmt.Errorf("unable to find ip address %s", params["ipaddressid"])
	}

	vmID := params["virtualmachineid"]
	if ip.SourceNAT {
		return nil, fmt.Errorf("failed to enable static nat: %s is a source nat address", ip.Address)
	}

	if ip.StaticNAT && ip.VMID != vmID {
		return nil, fmt.Errorf("failed to enable static nat: ip address %s already has static nat enabled", ip.Address)
	}

	for _, other := range c.PublicIPs {
		if other.ID != ip.ID && other.StaticNAT && other.VMID == vmID {
			return nil, fmt.Errorf("failed to enable static nat: virtual machine %s already has a static nat ip address", vmID)
		}
	}

	if _, vmFound := c.vm(vmID); !vmFound {
		return nil, fmt.Errorf("unable to find virtual machine %s", vmID)
	}

	ip.StaticNAT = true
	ip.VMID = vmID

	return nil, nil
}

func (c *Cloud) disableStaticNAT(params map[string]string) (any, error) {
	ip, found := c.publicIP(params["ipaddressid"])
	if !found {
		return nil, fmt.Errorf("unable to find ip address %s", params["ipaddressid"])
	}

	ip.StaticNAT = false
	ip.VMID = ""

	return nil, nil
}

func (c *Cloud) listFirewallRules(params map[string]string) any {
	items := []map[string]any{}
	for _, rule := range c.FirewallRules {
		if ipID := params["ipaddressid"]; ipID != "" && rule.IPID != ipID {
			continue
		}

		items = append(items, map[string]any{
			"id":        rule.ID,
			"startport": rule.StartPort,
			"endport":   rule.EndPort,
		})
	}

	return listing("firewallrule", items)
}

func (c *Cloud) createFirewallRule(params map[string]string) (any, error) {
	if _, found := c.publicIP(params["ipaddressid"]); !found {
		return nil, fmt.Errorf("unable to find ip address %s", params["ipaddressid"])
	}

	startPort, _ := strconv.Atoi(params["startport"])
	endPort, _ := strconv.Atoi(params["endport"])

	rule := &FirewallRule{
		ID:        c.id("fw"),
		IPID:      params["ipaddressid"],
		StartPort: startPort,
		EndPort:   endPort,
	}
	c.FirewallRules = append(c.FirewallRules, rule)

	return map[string]any{"firewallrule": map[string]any{
		"id":        rule.ID,
		"startport": rule.StartPort,
		"endport":   rule.EndPort,
	}}, nil
}

func (c *Cloud) deleteFirewallRule(params map[string]string) (any, error) {
	id := params["id"]
	for index, rule := range c.FirewallRules {
		if rule.ID == id {
			c.FirewallRules = append(c.FirewallRules[:index], c.FirewallRules[index+1:]...)
			return nil, nil
		}
	}

	return nil, fmt.Errorf("unable to find firewall rule %s", id)
}

func (c *Cloud) listVolumes(params map[string]string) any {
	items := []map[string]any{}
	for _, volume := range c.Volumes {
		if name := params["name"]; name != "" && !strings.Contains(volume.Name, name) {
			continue
		}
		if zoneID := params["zoneid"]; zoneID != "" && volume.ZoneID != zoneID {
			continue
		}
		if key := params["tags[0].key"]; key != "" && volume.Tags[key] != params["tags[0].value"] {
			continue
		}

		items = append(items, map[string]any{
			"id":               volume.ID,
			"name":             volume.Name,
			"size":             int64(volume.SizeGB) << 30,
			"state":            "Ready",
			"virtualmachineid": volume.VMID,
		})
	}

	return listing("volume", items)
}

func (c *Cloud) createVolume(params map[string]string) (any, error) {
	name := params["name"]
	for _, volume := range c.Volumes {
		if volume.Name == name {
			return nil, fmt.Errorf("volume with name %s already exists", name)
		}
	}

	volume := &Volume{
		ID:     c.id("vol"),
		Name:   name,
		ZoneID: params["zoneid"],
		Tags:   map[string]string{},
	}

	if snapshotID := params["snapshotid"]; snapshotID != "" {
		snapshot, found := c.snapshot(snapshotID)
		if !found {
			return nil, fmt.Errorf("unable to find snapshot %s", snapshotID)
		}
		volume.SizeGB = snapshot.SizeGB
	} else {
		if !c.hasOffering(c.DiskOfferings, params["diskofferingid"]) {
			return nil, fmt.Errorf("unable to find disk offering %s", params["diskofferingid"])
		}
		volume.SizeGB, _ = strconv.Atoi(params["size"])
	}

	c.Volumes = append(c.Volumes, volume)

	return map[string]any{"volume": map[string]any{
		"id":   volume.ID,
		"name": volume.Name,
		"size": int64(volume.SizeGB) << 30,
	}}, nil
}

func (c *Cloud) resizeVolume(params map[string]string) (any, error) {
	volume, found := c.volume(params["id"])
	if !found {
		return nil, fmt.Errorf("unable to find volume %s", params["id"])
	}

	sizeGB, _ := strconv.Atoi(params["size"])
	if sizeGB < volume.SizeGB {
		return nil, fmt.Errorf("going from existing size of %d to size of %d would shrink the volume", volume.SizeGB, sizeGB)
	}

	volume.SizeGB = sizeGB

	return map[string]any{"volume": map[string]any{"id": volume.ID, "size": int64(volume.SizeGB) << 30}}, nil
}

func (c *Cloud) attachVolume(params map[string]string) (any, error) {
	volume, found := c.volume(params["id"])
	if !found {
		return nil, fmt.Errorf("unable to find volume %s", params["id"])
	}

	vmID := params["virtualmachineid"]
	if volume.VMID != "" && volume.VMID != vmID {
		return nil, fmt.Errorf("volume %s is already attached to another virtual machine", volume.Name)
	}

	if _, vmFound := c.vm(vmID); !vmFound {
		return nil, fmt.Errorf("unable to find virtual machine %s", vmID)
	}

	volume.VMID = vmID

	return map[string]any{"volume": map[string]any{"id": volume.ID}}, nil
}

func (c *Cloud) detachVolume(params map[string]string) (any, error) {
	volume, found := c.volume(params["id"])
	if !found {
		return nil, fmt.Errorf("unable to find volume %s", params["id"])
	}

	volume.VMID = ""

	return nil, nil
}

func (c *Cloud) deleteVolume(params map[string]string) (any, error) {
	id := params["id"]
	for index, volume := range c.Volumes {
		if volume.ID != id {
			continue
		}

		if volume.VMID != "" {
			return nil, fmt.Errorf("please specify a volume that is not attached to any virtual machine")
		}

		c.Volumes = append(c.Volumes[:index], c.Volumes[index+1:]...)

		return nil, nil
	}

	return nil, fmt.Errorf("unable to find volume %s", id)
}

func (c *Cloud) createTags(params map[string]string) (any, error) {
	volume, found := c.volume(params["resourceids"])
	if !found {
		return nil, fmt.Errorf("unable to find resource %s", params["resourceids"])
	}

	if volume.Tags == nil {
		volume.Tags = map[string]string{}
	}
	volume.Tags[params["tags[0].key"]] = params["tags[0].value"]

	return nil, nil
}

func (c *Cloud) listSnapshotPolicies(params map[string]string) any {
	items := []map[string]any{}
	for _, policy := range c.SnapshotPolicies {
		if volumeID := params["volumeid"]; volumeID != "" && policy.VolumeID != volumeID {
			continue
		}
		items = append(items, map[string]any{"id": policy.ID, "volumeid": policy.VolumeID})
	}

	return listing("snapshotpolicy", items)
}

func (c *Cloud) createSnapshotPolicy(params map[string]string) (any, error) {
	if _, found := c.volume(params["volumeid"]); !found {
		return nil, fmt.Errorf("unable to find volume %s", params["volumeid"])
	}

	policy := &SnapshotPolicy{ID: c.id("pol"), VolumeID: params["volumeid"]}
	c.SnapshotPolicies = append(c.SnapshotPolicies, policy)

	return map[string]any{"snapshotpolicy": map[string]any{"id": policy.ID, "volumeid": policy.VolumeID}}, nil
}

func (c *Cloud) deleteSnapshotPolicy(params map[string]string) (any, error) {
	id := params["id"]
	for index, policy := range c.SnapshotPolicies {
		if policy.ID == id {
			c.SnapshotPolicies = append(c.SnapshotPolicies[:index], c.SnapshotPolicies[index+1:]...)
			return nil, nil
		}
	}

	return nil, fmt.Errorf("unable to find snapshot policy %s", id)
}

func (c *Cloud) listSnapshots() any {
	items := []map[string]any{}
	for _, snapshot := range c.Snapshots {
		items = append(items, map[string]any{
			"id":           snapshot.ID,
			"name":         snapshot.Name,
			"volumename":   snapshot.VolumeName,
			"state":        snapshot.State,
			"snapshottype": snapshot.Type,
			"created":      snapshot.Created,
		})
	}

	return listing("snapshot", items)
}

func (c *Cloud) serviceOffering(id string) (Offering, bool) {
	for _, offering := range c.ServiceOfferings {
		if offering.ID == id {
			return offering, true
		}
	}

	return Offering{}, false
}

func (c *Cloud) hasOffering(offerings []Offering, id string) bool {
	for _, offering := range offerings {
		if offering.ID == id {
			return true
		}
	}

	return false
}

func (c *Cloud) network(id string) (*Network, bool) {
	for _, network := range c.Networks {
		if network.ID == id {
			return network, true
		}
	}

	return nil, false
}

func (c *Cloud) keyPairByName(name string) *KeyPair {
	for _, pair := range c.KeyPairs {
		if pair.Name == name {
			return pair
		}
	}

	return nil
}

func (c *Cloud) vm(id string) (*VM, bool) {
	for _, vm := range c.VMs {
		if vm.ID == id {
			return vm, true
		}
	}

	return nil, false
}

func (c *Cloud) publicIP(id string) (*PublicIP, bool) {
	for _, ip := range c.PublicIPs {
		if ip.ID == id {
			return ip, true
		}
	}

	return nil, false
}

func (c *Cloud) volume(id string) (*Volume, bool) {
	for _, volume := range c.Volumes {
		if volume.ID == id {
			return volume, true
		}
	}

	return nil, false
}

func (c *Cloud) snapshot(id string) (Snapshot, bool) {
	for _, snapshot := range c.Snapshots {
		if snapshot.ID == id {
			return snapshot, true
		}
	}

	return Snapshot{}, false
}
