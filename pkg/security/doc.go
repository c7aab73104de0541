/*
Package security provides the cryptographic primitives this node needs:
AES-256-GCM secret sealing and mTLS certificate handling for the RPC
connection to the controller.

Certificate issuance is out of scope here — the controller side owns the
CA and hands this node a certificate and CA bundle ahead of time. This
package only loads what's already on disk and validates it.

# Cluster Encryption Key

Sealing at rest is rooted in a 32-byte key derived from the cluster ID:

	clusterKey = SHA-256(clusterID)

The key is held only in memory and must be set once via
SetClusterEncryptionKey, from the cluster ID the agent is started with,
before Encrypt/Decrypt are used. pkg/storage seals every completion
tombstone under this key before writing it to the bbolt database, and
opens it back on read.

	security.SetClusterEncryptionKey(security.DeriveKeyFromClusterID(clusterID))
	ciphertext, err := security.Encrypt(plaintext)
	plaintext, err := security.Decrypt(ciphertext)

SealWithKey/OpenWithKey are the underlying primitive, taking an arbitrary
key rather than the process-wide cluster key; pkg/agent's master-key
rotation builds on these directly instead of the cluster-key wrapper,
since each master key is scoped to the running node, not the cluster.

# Certificate Handling

	cert, err := security.LoadCertFromFile(certDir)     // node.crt + node.key
	caCert, err := security.LoadCACertFromFile(certDir)  // ca.crt

	if security.CertNeedsRotation(cert.Leaf) {
		// request a fresh certificate from the controller out of band,
		// then SaveCertToFile the replacement
	}

GetCertInfo and ValidateCertChain support inspecting and sanity-checking
a certificate before it's wired into a tls.Config.

# See Also

  - pkg/agent - MasterKeyManager reuses this package's AES-GCM Seal/Open
  - internal/rpc - Dial loads the node certificate and CA bundle from here
*/
package security
