package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/lunacloud/stackctl/internal/cmk"
	"github.com/lunacloud/stackctl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modelsDeployParams(userdata string) models.DeployVMParams {
	return models.DeployVMParams{
		Name:              "shop-1-preview-web",
		ServiceOfferingID: "so-1",
		TemplateID:        "t-1",
		ZoneID:            "zone-1",
		NetworkID:         "net-1",
		KeyPair:           "shop-1-preview-key",
		Userdata:          userdata,
	}
}

type stubAPI struct {
	calls   []string
	execute func(args []string) (cmk.Result, error)
}

func (s *stubAPI) Execute(_ context.Context, args ...string) (cmk.Result, error) {
	s.calls = append(s.calls, strings.Join(args, " "))
	return s.execute(args)
}

func respond(t *testing.T, payload string) func([]string) (cmk.Result, error) {
	t.Helper()

	result := cmk.Result{}
	require.NoError(t, json.Unmarshal([]byte(payload), &result))

	return func([]string) (cmk.Result, error) {
		return result, nil
	}
}

func Test_ResolveZone(t *testing.T) {
	testCases := []struct {
		name     string
		payload  string
		zone     string
		expected string
		err      error
	}{
		{
			name:     "resolves by exact name",
			payload:  `{"count": 1, "zone": [{"id": "zone-1", "name": "ZP01"}]}`,
			zone:     "ZP01",
			expected: "zone-1",
		},
		{
			name:    "loose match is not enough",
			payload: `{"count": 1, "zone": [{"id": "zone-1", "name": "ZP01-legacy"}]}`,
			zone:    "ZP01",
			err:     ErrNotFound,
		},
		{
			name:    "empty listing",
			payload: `{}`,
			zone:    "ZP09",
			err:     ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			api := &stubAPI{execute: respond(t, tc.payload)}
			client := New(api)

			zone, err := client.ResolveZone(context.Background(), tc.zone)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, zone.ID)
		})
	}
}

func Test_ResolveServiceOffering(t *testing.T) {
	api := &stubAPI{execute: respond(t, `{"count": 2, "serviceoffering": [
		{"id": "so-1", "name": "small"},
		{"id": "so-2", "name": "medium"}
	]}`)}
	client := New(api)

	id, err := client.ResolveServiceOffering(context.Background(), "medium")
	require.NoError(t, err)
	assert.Equal(t, "so-2", id)

	_, err = client.ResolveServiceOffering(context.Background(), "xlarge")
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_DiscoverTemplate(t *testing.T) {
	filter := regexp.MustCompile(`^Ubuntu.*24.*$`)

	testCases := []struct {
		name     string
		payload  string
		expected string
		err      error
	}{
		{
			name: "newest matching wins",
			payload: `{"count": 3, "template": [
				{"id": "t-1", "name": "Ubuntu 24.04", "created": "2026-01-10T10:00:00-0300"},
				{"id": "t-2", "name": "Ubuntu 24.04 LTS", "created": "2026-03-02T10:00:00-0300"},
				{"id": "t-3", "name": "Ubuntu 22.04", "created": "2026-04-01T10:00:00-0300"}
			]}`,
			expected: "t-2",
		},
		{
			name: "duplicate zone copies collapse",
			payload: `{"count": 2, "template": [
				{"id": "t-1", "name": "Ubuntu 24.04", "created": "2026-01-10T10:00:00-0300"},
				{"id": "t-1", "name": "Ubuntu 24.04", "created": "2026-01-10T10:00:00-0300"}
			]}`,
			expected: "t-1",
		},
		{
			name:    "nothing matches the filter",
			payload: `{"count": 1, "template": [{"id": "t-3", "name": "Debian 12", "created": "2026-04-01T10:00:00-0300"}]}`,
			err:     ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			api := &stubAPI{execute: respond(t, tc.payload)}
			client := New(api)

			template, err := client.DiscoverTemplate(context.Background(), "zone-1", "Ubuntu", filter)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, template.ID)
		})
	}
}

func Test_FindVM(t *testing.T) {
	api := &stubAPI{execute: respond(t, `{"count": 2, "virtualmachine": [
		{"id": "vm-10", "name": "shop-1-preview-worker-10", "state": "Running"},
		{"id": "vm-1", "name": "shop-1-preview-worker-1", "state": "Running",
		 "serviceofferingid": "so-1", "serviceofferingname": "small",
		 "nic": [{"ipaddress": "10.1.1.3"}]}
	]}`)}
	client := New(api)

	vm, found, err := client.FindVM(context.Background(), "shop-1-preview-worker-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "vm-1", vm.ID)
	assert.Equal(t, "small", vm.ServiceOfferingName)
	assert.Equal(t, "10.1.1.3", vm.InternalIP())
	assert.True(t, vm.Running())

	_, found, err = client.FindVM(context.Background(), "shop-1-preview-worker-2")
	require.NoError(t, err)
	assert.False(t, found)
}

func Test_DeployVMArgs(t *testing.T) {
	api := &stubAPI{execute: respond(t, `{"virtualmachine": {"id": "vm-1", "name": "shop-1-preview-web"}}`)}
	client := New(api)

	vm, err := client.DeployVM(context.Background(), modelsDeployParams("c2VydmVy"))
	require.NoError(t, err)
	assert.Equal(t, "vm-1", vm.ID)

	require.Len(t, api.calls, 1)
	assert.Equal(t,
		"deploy virtualmachine serviceofferingid=so-1 templateid=t-1 zoneid=zone-1 "+
			"networkids=net-1 keypair=shop-1-preview-key name=shop-1-preview-web "+
			"displayname=shop-1-preview-web userdata=c2VydmVy",
		api.calls[0],
	)

	api.calls = nil
	_, err = client.DeployVM(context.Background(), modelsDeployParams(""))
	require.NoError(t, err)
	assert.NotContains(t, api.calls[0], "userdata=")
}

func Test_FindVolume(t *testing.T) {
	api := &stubAPI{execute: respond(t, `{"count": 1, "volume": [
		{"id": "vol-1", "name": "shop-1-preview-blob", "size": 21474836480, "virtualmachineid": "vm-1"}
	]}`)}
	client := New(api)

	volume, found, err := client.FindVolume(context.Background(), "shop-1-preview-blob")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 20, volume.SizeGB())
	assert.True(t, volume.Attached())
}

func Test_ListPublicIPsSkipsSourceNAT(t *testing.T) {
	api := &stubAPI{execute: respond(t, `{"count": 3, "publicipaddress": [
		{"id": "ip-0", "ipaddress": "203.0.113.1", "issourcenat": true},
		{"id": "ip-1", "ipaddress": "203.0.113.10", "isstaticnat": true, "virtualmachineid": "vm-1"},
		{"id": "ip-2", "ipaddress": "203.0.113.11"}
	]}`)}
	client := New(api)

	ips, err := client.ListPublicIPs(context.Background(), "net-1")
	require.NoError(t, err)
	require.Len(t, ips, 2)
	assert.Equal(t, "ip-1", ips[0].ID)
	assert.True(t, ips[0].StaticNAT)
	assert.Equal(t, "ip-2", ips[1].ID)
}

func Test_ListSnapshotsMatchesVolumeName(t *testing.T) {
	api := &stubAPI{execute: respond(t, `{"count": 2, "snapshot": [
		{"id": "snap-1", "volumename": "shop-1-preview-blob", "state": "BackedUp", "created": "2026-08-19T00:03:00-0300"},
		{"id": "snap-2", "volumename": "shop-1-preview-dbdata", "state": "BackedUp", "created": "2026-08-19T00:03:00-0300"}
	]}`)}
	client := New(api)

	snapshots, err := client.ListSnapshots(context.Background(), "shop-1-preview-blob")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "snap-1", snapshots[0].ID)
}

func Test_ExecutorErrorsPropagate(t *testing.T) {
	apiErr := errors.New("cmk list zones failed after 6 attempts")
	api := &stubAPI{execute: func([]string) (cmk.Result, error) { return nil, apiErr }}
	client := New(api)

	_, err := client.ResolveZone(context.Background(), "ZP01")
	assert.ErrorIs(t, err, apiErr)

	_, _, err = client.FindVM(context.Background(), "shop-1-preview-web")
	assert.ErrorIs(t, err, apiErr)
}
