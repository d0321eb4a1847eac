package models

import (
	"regexp"

	"github.com/samber/lo"
)

// Catalog pins the provider offerings a deployment may reference. Plans are
// the service offering names the desired state is allowed to pick from.
type Catalog struct {
	NetworkOffering string         `mapstructure:"network_offering"`
	DiskOffering    string         `mapstructure:"disk_offering"`
	Plans           []string       `mapstructure:"plans"`
	TemplateKeyword string         `mapstructure:"template_keyword"`
	TemplateFilter  *regexp.Regexp `mapstructure:"template_filter"`
}

func (c Catalog) HasPlan(name string) bool {
	return lo.Contains(c.Plans, name)
}

// SnapshotPlan describes the daily snapshot policy attached to every data
// volume.
type SnapshotPlan struct {
	Schedule string   `mapstructure:"schedule"`
	MaxSnaps int      `mapstructure:"max_snaps"`
	Timezone string   `mapstructure:"timezone"`
	Zones    []string `mapstructure:"zones"`
}
