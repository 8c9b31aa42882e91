// Package archive writes completed execution records to durable blob
// storage for later inspection
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/flowchat/engine/pkg/api"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobArchiver stores execution records using gocloud.dev/blob,
// supporting S3, GCS, Azure Blob Storage, and S3-compatible stores
type BlobArchiver struct {
	bucket *blob.Bucket
	prefix string
}

var ErrExecutionNotFound = errors.New("archived execution not found")

// NewBlobArchiver opens the bucket named by URL. The prefix is
// prepended verbatim to every key
func NewBlobArchiver(
	ctx context.Context, bucketURL, prefix string,
) (*BlobArchiver, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &BlobArchiver{bucket: bucket, prefix: prefix}, nil
}

// Put stores a terminal execution record. Writing the same execution
// twice overwrites the earlier record
func (a *BlobArchiver) Put(
	ctx context.Context, ex *api.FlowExecution,
) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return err
	}
	return a.bucket.WriteAll(ctx, a.keyFor(ex.FlowID, ex.ID), data, nil)
}

// Get retrieves one archived execution record
func (a *BlobArchiver) Get(
	ctx context.Context, flowID api.FlowID, id api.ExecutionID,
) (*api.FlowExecution, error) {
	data, err := a.bucket.ReadAll(ctx, a.keyFor(flowID, id))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
		}
		return nil, err
	}

	var ex api.FlowExecution
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

func (a *BlobArchiver) Close() error {
	return a.bucket.Close()
}

func (a *BlobArchiver) keyFor(
	flowID api.FlowID, id api.ExecutionID,
) string {
	if flowID == "" {
		flowID = "adhoc"
	}
	return fmt.Sprintf("%s%s/%s.json", a.prefix, flowID, id)
}
