package validate

import (
	"encoding/json"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/lunacloud/stackctl/internal/models"
)

var (
	ErrUnknownPlan     = errors.New("unknown plan")
	ErrInvalidDiskSize = errors.New("disk size must be at least 1 GB")
)

// Validator checks desired state documents against the structural rules and
// the offering catalog. Validation never talks to the provider; zone and
// template existence are only checkable at provisioning time.
type Validator struct {
	catalog  models.Catalog
	validate *validator.Validate
}

func New(catalog models.Catalog) *Validator {
	return &Validator{catalog: catalog, validate: validator.New()}
}

// Parse decodes and validates an orchestration document. Unknown keys are
// tolerated so the orchestration layer can grow its contract first.
func (v *Validator) Parse(data []byte) (models.DesiredState, error) {
	var state models.DesiredState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.DesiredState{}, fmt.Errorf("failed to unmarshal desired state: %w", err)
	}

	if err := v.Validate(state); err != nil {
		return models.DesiredState{}, err
	}

	return state, nil
}

func (v *Validator) Validate(state models.DesiredState) error {
	if err := v.validate.Struct(state); err != nil {
		return fmt.Errorf("failed to validate desired state: %w", err)
	}

	if !v.catalog.HasPlan(state.WebPlan) {
		return fmt.Errorf("web_plan %q: %w", state.WebPlan, ErrUnknownPlan)
	}

	if state.WorkersEnabled && !v.catalog.HasPlan(state.WorkersPlan) {
		return fmt.Errorf("workers_plan %q: %w", state.WorkersPlan, ErrUnknownPlan)
	}

	if state.DBEnabled && !v.catalog.HasPlan(state.DBPlan) {
		return fmt.Errorf("db_plan %q: %w", state.DBPlan, ErrUnknownPlan)
	}

	if state.DBEnabled && state.DBDiskSizeGB < 1 {
		return fmt.Errorf("db_disk_size_gb %d: %w", state.DBDiskSizeGB, ErrInvalidDiskSize)
	}

	return nil
}
