// Package shard provides partition key derivation for the link and
// constraint tables.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// LinkPK computes the sharded partition key for a relationship link record.
// With numShards=1, all records for a target go to shard "00". With
// numShards>1, records are distributed across shards by holder hash so a
// heavily referenced target does not become a hot partition.
func LinkPK(targetRef, holderID string, numShards int) string {
	if numShards <= 1 {
		return fmt.Sprintf("%s#00", targetRef)
	}
	h := fnv.New32a()
	h.Write([]byte(holderID))
	shard := h.Sum32() % uint32(numShards)
	return fmt.Sprintf("%s#%02x", targetRef, shard)
}

// LinkPKs returns every shard partition key for a target, for fan-in
// queries over all link records pointing at it.
func LinkPKs(targetRef string, numShards int) []string {
	if numShards < 1 {
		numShards = 1
	}
	pks := make([]string, numShards)
	for i := 0; i < numShards; i++ {
		pks[i] = fmt.Sprintf("%s#%02x", targetRef, i)
	}
	return pks
}

// ConstraintPK computes a hash-distributed partition key for a refcode
// uniqueness record. Hashing spreads constraints across partitions,
// eliminating hot partition risk on the shared prefix.
func ConstraintPK(refcode string) string {
	h := sha256.Sum256([]byte(refcode))
	return hex.EncodeToString(h[:16]) // 128-bit hash as hex
}
