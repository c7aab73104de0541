/*
Package storage persists the node status updater's completion tombstones
in a single-bucket bbolt database.

The status collector (pkg/agent/statuscollector.go) transfers every
COMPLETE container status into the pending-completion buffer and, once a
heartbeat successfully acknowledges it, the buffer entry is dropped. This
package holds the narrower recovery record spec.md section 6 calls out:
RemoveFromStateStore annotates a durable tombstone when the controller
lists a completed container for removal. IsTombstoned reads that record
back, but nothing in this repository consults it at startup, so
registration sends whatever existing container reports its caller passes,
tombstoned or not.

# Usage

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Tombstone(containerID); err != nil {
		log.Warn().Err(err).Msg("state store removal failed")
	}

Tombstone failures are logged, not fatal, matching spec.md section 7's
"state-store removal error" entry in the error handling taxonomy.
*/
package storage
