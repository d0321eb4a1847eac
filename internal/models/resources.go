package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Resource records as returned by the provider's list APIs. Only the fields
// the engine diffs on are mapped; everything else in the payload is ignored.

type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Created string `json:"created"`
}

type Network struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	ZoneID string `json:"zoneid"`
}

const (
	VMStateRunning = "Running"
	VMStateStopped = "Stopped"
)

type VirtualMachine struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	State               string `json:"state"`
	ServiceOfferingID   string `json:"serviceofferingid"`
	ServiceOfferingName string `json:"serviceofferingname"`
	Nics                []NIC  `json:"nic"`
}

func (vm VirtualMachine) Running() bool { return vm.State == VMStateRunning }

// InternalIP returns the address of the first NIC, the one on the
// deployment network.
func (vm VirtualMachine) InternalIP() string {
	if len(vm.Nics) == 0 {
		return ""
	}

	return vm.Nics[0].IPAddress
}

type NIC struct {
	IPAddress string `json:"ipaddress"`
}

// DeployVMParams carries everything a virtual machine create call needs.
// Userdata is already base64-encoded and may be empty.
type DeployVMParams struct {
	Name              string
	ServiceOfferingID string
	TemplateID        string
	ZoneID            string
	NetworkID         string
	KeyPair           string
	Userdata          string
}

const bytesPerGB = 1 << 30

type Volume struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Size             int64  `json:"size"`
	State            string `json:"state"`
	VirtualMachineID string `json:"virtualmachineid"`
}

// SizeGB converts the byte size reported by the API into the unit used by
// the desired state and the create call.
func (v Volume) SizeGB() int { return int(v.Size / bytesPerGB) }

func (v Volume) Attached() bool { return v.VirtualMachineID != "" }

type PublicIP struct {
	ID               string `json:"id"`
	IPAddress        string `json:"ipaddress"`
	SourceNAT        bool   `json:"issourcenat"`
	StaticNAT        bool   `json:"isstaticnat"`
	VirtualMachineID string `json:"virtualmachineid"`
}

type FirewallRule struct {
	ID        string `json:"id"`
	StartPort Port   `json:"startport"`
	EndPort   Port   `json:"endport"`
}

// Port tolerates both numeric and quoted values; the API has emitted both
// across versions.
type Port int

func (p *Port) UnmarshalJSON(data []byte) error {
	value := strings.Trim(string(data), `"`)
	if value == "" || value == "null" {
		*p = 0
		return nil
	}

	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("failed to parse port %q: %w", value, err)
	}

	*p = Port(port)

	return nil
}

type SnapshotPolicy struct {
	ID       string `json:"id"`
	VolumeID string `json:"volumeid"`
}

// SnapshotPolicyParams carries a snapshot policy create call. The interval
// is always daily.
type SnapshotPolicyParams struct {
	VolumeID string
	Schedule string
	MaxSnaps int
	Timezone string
	Zones    []string
	TagKey   string
	TagValue string
}

const (
	SnapshotStateBackedUp = "BackedUp"

	snapshotTimeLayout = "2006-01-02T15:04:05-0700"
)

type Snapshot struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	VolumeName string `json:"volumename"`
	State      string `json:"state"`
	Type       string `json:"snapshottype"`
	Created    string `json:"created"`
}

// CreatedTime parses the API timestamp. Malformed or absent timestamps sort
// as the zero time, i.e. oldest.
func (s Snapshot) CreatedTime() time.Time {
	created, err := time.Parse(snapshotTimeLayout, s.Created)
	if err != nil {
		return time.Time{}
	}

	return created
}
