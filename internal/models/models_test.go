package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_PortUnmarshal(t *testing.T) {
	testCases := []struct {
		name     string
		payload  string
		expected Port
		wantErr  bool
	}{
		{
			name:     "number",
			payload:  `{"startport": 443}`,
			expected: 443,
		},
		{
			name:     "quoted number",
			payload:  `{"startport": "80"}`,
			expected: 80,
		},
		{
			name:     "null",
			payload:  `{"startport": null}`,
			expected: 0,
		},
		{
			name:    "garbage",
			payload: `{"startport": "ssh"}`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rule := FirewallRule{}
			err := json.Unmarshal([]byte(tc.payload), &rule)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, rule.StartPort)
		})
	}
}

func Test_VolumeSizeGB(t *testing.T) {
	volume := Volume{Size: 20 << 30}
	assert.Equal(t, 20, volume.SizeGB())
	assert.False(t, volume.Attached())

	volume.VirtualMachineID = "vm-1"
	assert.True(t, volume.Attached())
}

func Test_SnapshotCreatedTime(t *testing.T) {
	snapshot := Snapshot{Created: "2026-08-19T00:03:00-0300"}
	created := snapshot.CreatedTime()
	assert.Equal(t, time.Date(2026, 8, 19, 0, 3, 0, 0, created.Location()), created)

	assert.True(t, Snapshot{Created: "yesterday"}.CreatedTime().IsZero())
	assert.True(t, Snapshot{}.CreatedTime().IsZero())
}

func Test_DescriptorJSON(t *testing.T) {
	dbIP := "203.0.113.12"
	dbInternalIP := "10.1.1.4"

	testCases := []struct {
		name       string
		descriptor Descriptor
		expected   string
	}{
		{
			name: "full topology",
			descriptor: Descriptor{
				WebIP:        "203.0.113.10",
				WorkerIPs:    []string{"203.0.113.11"},
				DBIP:         &dbIP,
				DBInternalIP: &dbInternalIP,
			},
			expected: `{"web_ip":"203.0.113.10","worker_ips":["203.0.113.11"],"db_ip":"203.0.113.12","db_internal_ip":"10.1.1.4"}`,
		},
		{
			name: "web only",
			descriptor: Descriptor{
				WebIP:     "203.0.113.10",
				WorkerIPs: []string{},
			},
			expected: `{"web_ip":"203.0.113.10","worker_ips":[],"db_ip":null,"db_internal_ip":null}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.descriptor)
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, string(data))
		})
	}
}

func Test_DesiredStateWorkers(t *testing.T) {
	state := DesiredState{WorkersEnabled: true, WorkersReplicas: 3}
	assert.Equal(t, 3, state.Workers())

	state.WorkersEnabled = false
	assert.Equal(t, 0, state.Workers())
}

func Test_VMInternalIP(t *testing.T) {
	vm := VirtualMachine{Nics: []NIC{{IPAddress: "10.1.1.2"}, {IPAddress: "10.1.2.2"}}}
	assert.Equal(t, "10.1.1.2", vm.InternalIP())
	assert.Empty(t, VirtualMachine{}.InternalIP())
}
