package models

// Descriptor is the provisioning output consumed by the deployment tooling.
// The db fields are literal nulls when the database host is disabled, and
// worker_ips is always an array, even when empty.
type Descriptor struct {
	WebIP        string   `json:"web_ip"`
	WorkerIPs    []string `json:"worker_ips"`
	DBIP         *string  `json:"db_ip"`
	DBInternalIP *string  `json:"db_internal_ip"`
}
