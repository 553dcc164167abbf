// Package filesink is the simplest Sink implementation: one file per
// info_hash, named by its hex encoding, written to a directory —
// the direct equivalent of TorrentCrawlerFile in the original crawler.
package filesink

import (
	"os"
	"path/filepath"

	"dhtcrawler/krpc"

	"github.com/pkg/errors"
)

type FileSink struct {
	dir string
}

// New returns a FileSink rooted at dir, creating it if necessary.
func New(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "filesink: create %s", dir)
	}
	return &FileSink{dir: dir}, nil
}

func (f *FileSink) pathFor(infoHash krpc.ID) string {
	return filepath.Join(f.dir, infoHash.String())
}

func (f *FileSink) Exists(infoHash krpc.ID) (bool, error) {
	_, err := os.Stat(f.pathFor(infoHash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "filesink: stat %s", infoHash)
}

func (f *FileSink) Save(infoHash krpc.ID, info []byte) error {
	return errors.Wrapf(
		os.WriteFile(f.pathFor(infoHash), info, 0o644),
		"filesink: write %s", infoHash,
	)
}
