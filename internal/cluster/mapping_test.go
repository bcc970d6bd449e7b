package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfield/textcorpus-mcp/pkg/types"
)

func TestCreateClusterMapping(t *testing.T) {
	mapping, err := CreateClusterMapping([]string{"a", "b"}, []int{0, -1})
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{
		"a": {"cluster-0"},
		"b": {"noise"},
	}, mapping)
}

func TestCreateClusterMapping_LengthMismatch(t *testing.T) {
	_, err := CreateClusterMapping([]string{"a", "b"}, []int{0})
	assert.ErrorIs(t, err, types.ErrLengthMismatch)
}

func TestCreateClusterMapping_Empty(t *testing.T) {
	mapping, err := CreateClusterMapping(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, mapping)
}

func TestClusterName(t *testing.T) {
	assert.Equal(t, "cluster-0", ClusterName(0))
	assert.Equal(t, "cluster-12", ClusterName(12))
	assert.Equal(t, "noise", ClusterName(Noise))
}

func TestParseClusterName(t *testing.T) {
	for _, label := range []int{0, 1, 7, 104, Noise} {
		got, err := ParseClusterName(ClusterName(label))
		require.NoError(t, err)
		assert.Equal(t, label, got)
	}
}

func TestParseClusterName_Invalid(t *testing.T) {
	for _, name := range []string{"", "cluster-", "cluster--1", "cluster-x", "group-3", "NOISE"} {
		_, err := ParseClusterName(name)
		assert.ErrorIs(t, err, types.ErrUnknownLabel, "name: %q", name)
	}
}
