package dataset

import (
	"archive/tar"
	"bufio"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var shardRegexp = regexp.MustCompile(`^shard-[0-9]{6,}\.tar$`)

// ErrPendingOverflow indicates the image/label pairing map exceeded its bound.
var ErrPendingOverflow = errors.New("shard: pending pair buffer exceeded")

const defaultPendingCap = 1024

// Sample is one paired record from a WebDataset shard: an encoded image and
// its integer class label.
type Sample struct {
	Key   string
	Image []byte
	Label int
}

// DiscoverShards returns sorted absolute paths to shard TAR files beneath
// root.
func DiscoverShards(root string) ([]string, error) {
	entries := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if shardRegexp.MatchString(d.Name()) {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "discovering shards under %s", root)
	}
	sort.Strings(entries)
	return entries, nil
}

// ReadShard reads all paired samples from the shard at path, in archive
// order. Image and label members pair by basename; the pending pair map is
// bounded by pendingCap.
func ReadShard(ctx context.Context, path string, pendingCap int) ([]Sample, error) {
	if pendingCap <= 0 {
		pendingCap = defaultPendingCap
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening shard")
	}
	defer f.Close()

	tr := tar.NewReader(bufio.NewReader(f))
	pending := make(map[string]*partial)
	var out []Sample

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading tar")
		}
		if hdr.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(hdr.Name)
		ext := strings.ToLower(filepath.Ext(name))
		key := strings.TrimSuffix(name, ext)

		switch ext {
		case ".jpg", ".jpeg", ".png":
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, errors.Wrapf(err, "reading image %s", name)
			}
			part := pending[key]
			if part == nil {
				part = &partial{}
				pending[key] = part
			}
			part.image = data
		case ".cls":
			payload, err := io.ReadAll(tr)
			if err != nil {
				return nil, errors.Wrapf(err, "reading label %s", name)
			}
			label, err := strconv.Atoi(strings.TrimSpace(string(payload)))
			if err != nil {
				return nil, errors.Wrapf(err, "parsing label %s", name)
			}
			part := pending[key]
			if part == nil {
				part = &partial{}
				pending[key] = part
			}
			part.label = &label
		default:
			continue
		}

		if len(pending) > pendingCap {
			return nil, ErrPendingOverflow
		}

		if part := pending[key]; part != nil && part.ready() {
			out = append(out, Sample{Key: key, Image: part.image, Label: *part.label})
			delete(pending, key)
		}
	}

	if len(pending) > 0 {
		return nil, errors.Errorf("%d samples incomplete in %s", len(pending), path)
	}
	return out, nil
}

type partial struct {
	image []byte
	label *int
}

func (p *partial) ready() bool {
	return len(p.image) > 0 && p.label != nil
}
