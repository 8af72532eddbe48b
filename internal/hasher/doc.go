// Package hasher computes the content fingerprint used to deduplicate media.
//
// Files are read in bounded chunks, never loaded whole. The default digest
// is BLAKE3; BLAKE2b-256 and SHA-256 are available for catalogs that were
// started with them. The algorithm is pinned in the catalog metadata because
// digests from different algorithms never compare equal.
package hasher
