package p2p

import "golang.org/x/crypto/blake2b"

// txHash derives the dedup/broadcast key for a raw transaction. The P2P
// core treats transaction bytes as opaque (the kernel excess commitment is
// owned by the consensus layer), so it hashes the wire bytes directly
// rather than parsing a kernel id out of them.
func txHash(tx []byte) Hash {
	return blake2b.Sum256(tx)
}
