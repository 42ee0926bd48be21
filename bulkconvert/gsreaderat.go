package bulkconvert

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
)

// MaybeOpenFromGoogleStorage opens a file from Google Storage if the path
// carries a gs:// prefix, and from local disk otherwise, along with its size
// in bytes.
func MaybeOpenFromGoogleStorage(path string, client *storage.Client) (ReaderAtCloser, int64, error) {
	if strings.HasPrefix(path, "gs://") {
		if client == nil {
			return nil, 0, fmt.Errorf("%s is a google storage path but no storage client was provided", path)
		}

		// Detect the bucket and the path to the actual file
		pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
		if len(pathParts) != 2 {
			return nil, 0, fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
		}
		bucketName := pathParts[0]
		pathName := pathParts[1]

		handle := client.Bucket(bucketName).Object(pathName)

		wrappedHandle := &GSReaderAtCloser{
			ObjectHandle: handle,
			Context:      context.Background(),
		}

		// Make a hard call to get the filesize
		attrs, err := handle.Attrs(wrappedHandle.Context)
		if err != nil {
			return nil, 0, pfx.Err(fmt.Errorf("%s: %s", path, err))
		}

		return wrappedHandle, attrs.Size, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return f, 0, err
	}
	fstat, err := f.Stat()
	if err != nil {
		return f, 0, err
	}
	return f, fstat.Size(), nil
}

// ListFromGoogleStorage lists the objects directly under a gs://bucket/prefix
// folder, returning fully qualified gs:// names. It does not descend into
// deeper prefixes.
func ListFromGoogleStorage(gsDir string, client *storage.Client) ([]string, error) {
	if client == nil {
		return nil, fmt.Errorf("%s is a google storage path but no storage client was provided", gsDir)
	}

	pathParts := strings.SplitN(strings.TrimPrefix(gsDir, "gs://"), "/", 2)
	bucketName := pathParts[0]
	prefix := ""
	if len(pathParts) == 2 && pathParts[1] != "" {
		prefix = strings.TrimSuffix(pathParts[1], "/") + "/"
	}

	query := &storage.Query{Prefix: prefix, Delimiter: "/"}
	it := client.Bucket(bucketName).Objects(context.Background(), query)

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		// Directory placeholders and synthetic prefix entries carry no name.
		if attrs.Name == "" || strings.HasSuffix(attrs.Name, "/") {
			continue
		}

		names = append(names, "gs://"+bucketName+"/"+attrs.Name)
	}

	return names, nil
}

type ReaderAtCloser interface {
	io.Reader
	io.ReaderAt
	io.Closer
}

// GSReaderAtCloser decorates a Google Storage object handle with ReadAt and
// lazy sequential reads.
type GSReaderAtCloser struct {
	*storage.ObjectHandle
	Context context.Context
	Closer  *func() error
	Reader  *storage.Reader
}

func (o *GSReaderAtCloser) Read(p []byte) (n int, err error) {
	if o.Reader == nil {
		o.Reader, err = o.NewReader(o.Context)
		if err != nil {
			return 0, err
		}
	}

	return o.Reader.Read(p)
}

// ReadAt satisfies io.ReaderAt. Note that this is dependent upon making p a
// buffer of the desired length to be read by NewRangeReader.
func (o *GSReaderAtCloser) ReadAt(p []byte, offset int64) (n int, err error) {
	rdr, err := o.NewRangeReader(o.Context, offset, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rdr.Close()

	return rdr.Read(p)
}

// Close satisfies io.Closer. The sequential reader is shut down if one was
// opened; any extra Closer runs afterward.
func (o *GSReaderAtCloser) Close() error {
	if o.Reader != nil {
		if err := o.Reader.Close(); err != nil {
			return err
		}
	}

	if o.Closer != nil {
		return (*o.Closer)()
	}

	return nil
}
