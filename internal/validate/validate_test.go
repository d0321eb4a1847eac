package validate

import (
	"regexp"
	"testing"

	"github.com/lunacloud/stackctl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() models.Catalog {
	return models.Catalog{
		NetworkOffering: "Default Guest Network",
		DiskOffering:    "data.disk.general",
		Plans:           []string{"small", "medium", "large"},
		TemplateKeyword: "Ubuntu",
		TemplateFilter:  regexp.MustCompile(`^Ubuntu.*24.*$`),
	}
}

func fullState() models.DesiredState {
	return models.DesiredState{
		Zone:            "ZP01",
		Domain:          "shop.example.com",
		WebPlan:         "medium",
		WorkersPlan:     "small",
		DBPlan:          "large",
		BlobDiskSizeGB:  20,
		DBDiskSizeGB:    50,
		WorkersEnabled:  true,
		WorkersReplicas: 2,
		DBEnabled:       true,
	}
}

func Test_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(state *models.DesiredState)
		wantErr bool
		err     error
	}{
		{
			name:   "happy path",
			mutate: func(*models.DesiredState) {},
		},
		{
			name: "web only",
			mutate: func(state *models.DesiredState) {
				state.WorkersEnabled = false
				state.WorkersPlan = ""
				state.DBEnabled = false
				state.DBPlan = ""
				state.DBDiskSizeGB = 0
			},
		},
		{
			name:    "missing zone",
			mutate:  func(state *models.DesiredState) { state.Zone = "" },
			wantErr: true,
		},
		{
			name:    "missing web plan",
			mutate:  func(state *models.DesiredState) { state.WebPlan = "" },
			wantErr: true,
		},
		{
			name:    "unknown web plan",
			mutate:  func(state *models.DesiredState) { state.WebPlan = "xlarge" },
			wantErr: true,
			err:     ErrUnknownPlan,
		},
		{
			name:    "unknown workers plan",
			mutate:  func(state *models.DesiredState) { state.WorkersPlan = "nano" },
			wantErr: true,
			err:     ErrUnknownPlan,
		},
		{
			name: "disabled workers skip the plan check",
			mutate: func(state *models.DesiredState) {
				state.WorkersEnabled = false
				state.WorkersPlan = "nano"
			},
		},
		{
			name:    "unknown db plan",
			mutate:  func(state *models.DesiredState) { state.DBPlan = "huge" },
			wantErr: true,
			err:     ErrUnknownPlan,
		},
		{
			name:    "zero blob disk",
			mutate:  func(state *models.DesiredState) { state.BlobDiskSizeGB = 0 },
			wantErr: true,
		},
		{
			name:    "negative workers replicas",
			mutate:  func(state *models.DesiredState) { state.WorkersReplicas = -1 },
			wantErr: true,
		},
		{
			name:    "db enabled without disk size",
			mutate:  func(state *models.DesiredState) { state.DBDiskSizeGB = 0 },
			wantErr: true,
			err:     ErrInvalidDiskSize,
		},
	}

	validator := New(testCatalog())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			state := fullState()
			tc.mutate(&state)

			err := validator.Validate(state)
			if tc.wantErr {
				assert.Error(t, err)
				if tc.err != nil {
					assert.ErrorIs(t, err, tc.err)
				}
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func Test_Parse(t *testing.T) {
	validator := New(testCatalog())

	state, err := validator.Parse([]byte(`{
		"zone": "ZP01",
		"domain": "shop.example.com",
		"web_plan": "small",
		"blob_disk_size_gb": 20,
		"workers_enabled": false,
		"db_enabled": false,
		"recover": true
	}`))
	require.NoError(t, err)
	assert.Equal(t, "ZP01", state.Zone)
	assert.Equal(t, "small", state.WebPlan)
	assert.Equal(t, 20, state.BlobDiskSizeGB)
	assert.False(t, state.WorkersEnabled)

	_, err = validator.Parse([]byte(`{"zone": `))
	assert.Error(t, err)

	_, err = validator.Parse([]byte(`{"zone": "ZP01", "web_plan": "small"}`))
	assert.Error(t, err)
}
