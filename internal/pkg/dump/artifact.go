package dump

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Extension is appended to every artifact name.
const Extension = ".tar.gz"

// ErrEmptyArtifact means the dump process succeeded but produced no data.
var ErrEmptyArtifact = errors.New("dump produced an empty artifact")

// Artifact is a compressed dump on local disk owned by the current run.
type Artifact struct {
	Filename  string
	LocalPath string
	SizeBytes int64
	CreatedAt time.Time
}

// ArtifactName derives a filename from a prefix and an ISO-8601 timestamp with
// millisecond precision. Colons and periods are replaced so the name is safe on
// every filesystem, e.g. "backup-2026-10-19T08-30-00-123Z.tar.gz".
func ArtifactName(prefix string, t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return prefix + stamp + Extension
}

// VerifyNonEmpty decompresses the artifact far enough to read one byte and
// returns the on-disk size.
func VerifyNonEmpty(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat artifact: %w", err)
	}
	if info.Size() == 0 {
		return 0, ErrEmptyArtifact
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("artifact is not valid gzip: %w", err)
	}
	defer zr.Close()

	var one [1]byte
	if _, err := io.ReadFull(zr, one[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, ErrEmptyArtifact
		}
		return 0, fmt.Errorf("failed to read artifact: %w", err)
	}
	return info.Size(), nil
}
