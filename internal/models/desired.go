package models

// DesiredState is the declarative document handed over by the orchestration
// layer. The JSON field names are part of the CI contract and must not
// change. Unknown fields (such as a stray recover key) are tolerated;
// recovery is an execution mode, not configuration.
type DesiredState struct {
	Zone            string `json:"zone" validate:"required"`
	Domain          string `json:"domain"`
	WebPlan         string `json:"web_plan" validate:"required"`
	WorkersPlan     string `json:"workers_plan"`
	DBPlan          string `json:"db_plan"`
	BlobDiskSizeGB  int    `json:"blob_disk_size_gb" validate:"min=1"`
	DBDiskSizeGB    int    `json:"db_disk_size_gb" validate:"min=0"`
	WorkersEnabled  bool   `json:"workers_enabled"`
	WorkersReplicas int    `json:"workers_replicas" validate:"min=0"`
	DBEnabled       bool   `json:"db_enabled"`
}

// Workers returns the desired worker count, zero when the tier is disabled.
func (s DesiredState) Workers() int {
	if !s.WorkersEnabled {
		return 0
	}
	return s.WorkersReplicas
}
