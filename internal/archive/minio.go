// Package archive exports point-in-time document snapshots to S3-compatible
// object storage. Snapshots are write-only audit artifacts; the live store
// stays the single source of truth.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/casdoc/casdoc/internal/document"
	"github.com/casdoc/casdoc/internal/store"
	"github.com/casdoc/casdoc/pkg/metrics"
)

// Config holds object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// Archiver is a thin wrapper around the minio client.
type Archiver struct {
	client *minio.Client
	bucket string
}

// New creates the client and ensures the bucket exists (idempotent).
func New(cfg Config) (*Archiver, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("archive: endpoint missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "minio new")
	}
	a := &Archiver{client: mc, bucket: cfg.Bucket}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, a.bucket)
		if xerr != nil || !exist {
			return nil, errors.Wrap(err, "minio bucket ensure")
		}
	}
	return a, nil
}

type snapshot struct {
	Key        string            `json:"key"`
	CAS        store.CAS         `json:"cas"`
	Doc        document.Document `json:"doc"`
	ArchivedAt time.Time         `json:"archivedAt"`
}

// Snapshot uploads the document state under <key>/<cas>.json. One object
// per token keeps the full mutation history browsable.
func (a *Archiver) Snapshot(ctx context.Context, key string, doc document.Document, cas store.CAS) error {
	payload, err := json.Marshal(snapshot{Key: key, CAS: cas, Doc: doc, ArchivedAt: time.Now().UTC()})
	if err != nil {
		metrics.ArchiveSnapshots.WithLabelValues("error").Inc()
		return errors.Wrap(err, "snapshot encode")
	}
	object := fmt.Sprintf("%s/%s.json", key, cas)
	_, err = a.client.PutObject(ctx, a.bucket, object, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		metrics.ArchiveSnapshots.WithLabelValues("error").Inc()
		return errors.Wrap(err, "snapshot upload")
	}
	metrics.ArchiveSnapshots.WithLabelValues("ok").Inc()
	return nil
}
