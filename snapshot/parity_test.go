package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/snapshot"
)

func TestEncodeParityRecoverWithoutLoss(t *testing.T) {
	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	shards, err := snapshot.EncodeParity(payload)
	require.NoError(t, err)

	got, err := snapshot.RecoverParity(shards, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestRecoverParityReconstructsMissingShards(t *testing.T) {
	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte((i * 7) % 251)
	}

	shards, err := snapshot.EncodeParity(payload)
	require.NoError(t, err)

	damaged := make([][]byte, len(shards))
	copy(damaged, shards)
	damaged[1] = nil
	damaged[9] = nil

	got, err := snapshot.RecoverParity(damaged, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestRecoverParityRejectsWrongShardCount(t *testing.T) {
	_, err := snapshot.RecoverParity([][]byte{{1, 2, 3}}, 3)
	require.Error(t, err)
}
