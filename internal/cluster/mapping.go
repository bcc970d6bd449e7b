package cluster

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mfield/textcorpus-mcp/pkg/types"
)

const clusterNamePrefix = "cluster-"

// CreateClusterMapping turns parallel id/label sequences into the textual
// assignment map: label n becomes ["cluster-n"], the Noise label becomes
// ["noise"].
func CreateClusterMapping(ids []string, labels []int) (map[string][]string, error) {
	if len(ids) != len(labels) {
		return nil, fmt.Errorf("%w: %d ids, %d labels", types.ErrLengthMismatch, len(ids), len(labels))
	}

	mapping := make(map[string][]string, len(ids))
	for i, id := range ids {
		mapping[id] = []string{ClusterName(labels[i])}
	}
	return mapping, nil
}

// ClusterName renders one label as its textual cluster identifier.
func ClusterName(label int) string {
	if label == Noise {
		return NoiseName
	}
	return fmt.Sprintf("%s%d", clusterNamePrefix, label)
}

// ParseClusterName is the inverse of ClusterName.
func ParseClusterName(name string) (int, error) {
	if name == NoiseName {
		return Noise, nil
	}

	numeric, ok := strings.CutPrefix(name, clusterNamePrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", types.ErrUnknownLabel, name)
	}

	label, err := strconv.Atoi(numeric)
	if err != nil || label < 0 {
		return 0, fmt.Errorf("%w: %q", types.ErrUnknownLabel, name)
	}
	return label, nil
}
