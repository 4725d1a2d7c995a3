package snapshot

import (
	"github.com/klauspost/reedsolomon"

	"github.com/coreruntime/kernel/kerrors"
)

// parityShards/dataShards pick a modest redundancy ratio (2 parity shards
// per 8 data shards): standalone binaries are shipped as single files with
// no transport-level retry, so a truncated download or a corrupted tail is
// unrecoverable by any other means available here.
const (
	dataShards   = 8
	parityShards = 2
	totalShards  = dataShards + parityShards
)

// EncodeParity splits payload into dataShards+parityShards reed-solomon
// shards, returned as separate equal-length slices (data shards first, the
// last one zero-padded). The original payload length is not recorded: the
// caller keeps it and passes it to RecoverParity, which rebuilds the
// payload when up to parityShards shards are missing.
func EncodeParity(payload []byte) ([][]byte, error) {
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "construct reed-solomon encoder")
	}
	shards, err := enc.Split(payload)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "split payload into shards")
	}
	if err := enc.Encode(shards); err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "encode parity shards")
	}
	return shards, nil
}

// RecoverParity reconstructs the original payload of the given length from
// shards, some of which may be nil (missing/corrupt). Up to parityShards of
// the totalShards may be absent.
func RecoverParity(shards [][]byte, payloadLen int) ([]byte, error) {
	if len(shards) != totalShards {
		return nil, kerrors.New(kerrors.KindInvalidData, "expected %d shards, got %d", totalShards, len(shards))
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "construct reed-solomon encoder")
	}
	ok, err := enc.Verify(shards)
	if err != nil || !ok {
		if err := enc.Reconstruct(shards); err != nil {
			return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "reconstruct shards")
		}
	}

	out := make([]byte, 0, payloadLen)
	for _, s := range shards[:dataShards] {
		out = append(out, s...)
	}
	if len(out) < payloadLen {
		return nil, kerrors.New(kerrors.KindInvalidData, "reconstructed payload shorter than expected length")
	}
	return out[:payloadLen], nil
}
