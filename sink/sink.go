// Package sink defines the pluggable destination for fetched torrent
// metadata. The fetcher orchestrator consults a Sink before starting a
// fetch (so it never re-downloads something already on hand) and again
// once a fetch succeeds.
package sink

import "dhtcrawler/krpc"

// Sink is implemented by anything that can remember which info_hashes it
// already has metadata for and persist newly fetched ones.
type Sink interface {
	// Exists reports whether metadata for infoHash has already been saved.
	Exists(infoHash krpc.ID) (bool, error)
	// Save persists the raw bencoded info dict for infoHash.
	Save(infoHash krpc.ID, info []byte) error
}
