package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Fingerprint computes the change-detection fingerprint of a source
// document: a hash over the content hash, the hash of the sorted
// metadata and the version. Two documents with equal fingerprints are
// treated as unchanged and skipped during incremental indexing.
func Fingerprint(content string, metadata map[string]string, version string) string {
	contentSum := sha256.Sum256([]byte(content))

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	metaHasher := sha256.New()
	for _, k := range keys {
		metaHasher.Write([]byte(k))
		metaHasher.Write([]byte{0})
		metaHasher.Write([]byte(metadata[k]))
		metaHasher.Write([]byte{0})
	}

	final := sha256.New()
	final.Write(contentSum[:])
	final.Write(metaHasher.Sum(nil))
	final.Write([]byte(version))
	return hex.EncodeToString(final.Sum(nil))
}
