package hooktools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTools_MemoInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	f := NewFakeRunner()
	f.Outputs["relation-get -r cluster:0 --format=json - kafka/1"] = `{"az":"zone-a"}`
	tools := New(f)

	m, err := tools.RelationGet(ctx, "cluster:0", "kafka/1", false)
	require.NoError(t, err)
	assert.Equal(t, "zone-a", m["az"])

	_, err = tools.RelationGet(ctx, "cluster:0", "kafka/1", false)
	require.NoError(t, err)
	require.Len(t, f.CallsTo("relation-get"), 1, "second read must be memoized")

	require.NoError(t, tools.RelationSet(ctx, "cluster:0", false, map[string]string{"az": "zone-b"}))
	_, err = tools.RelationGet(ctx, "cluster:0", "kafka/1", false)
	require.NoError(t, err)
	require.Len(t, f.CallsTo("relation-get"), 2, "write must flush the memo")
}

func TestTools_RelationSetUsesStdinYAML(t *testing.T) {
	f := NewFakeRunner()
	tools := New(f)
	pem := "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n"

	require.NoError(t, tools.RelationSet(context.Background(), "cluster:1", true, map[string]string{"cert": pem}))

	calls := f.CallsTo("relation-set")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-r", "cluster:1", "--app", "--file", "-"}, calls[0].Args)

	var got map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(calls[0].Stdin), &got))
	assert.Equal(t, pem, got["cert"])
}

func TestTools_IngressAddressShapes(t *testing.T) {
	ctx := context.Background()
	f := NewFakeRunner()
	f.Outputs["network-get cluster --ingress-address --format=json"] = `"10.0.0.5"`
	f.Outputs["network-get zookeeper --ingress-address --format=json"] = `["10.0.1.7","10.0.1.8"]`
	tools := New(f)

	a, err := tools.IngressAddress(ctx, "cluster")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", a)

	a, err = tools.IngressAddress(ctx, "zookeeper")
	require.NoError(t, err)
	assert.Equal(t, "10.0.1.7", a)
}

func TestTools_IsLeaderAndErrors(t *testing.T) {
	ctx := context.Background()
	f := NewFakeRunner()
	f.Outputs["is-leader --format=json"] = "true\n"
	tools := New(f)

	ok, err := tools.IsLeader(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = tools.RelationIDs(ctx, "zookeeper")
	require.Error(t, err)
}
