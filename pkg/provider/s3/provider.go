package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/swiftfs/pkg/provider"
)

// Provider implements provider.Provider for AWS S3 and S3-compatible storage.
type Provider struct {
	client  *s3.Client
	bucket  string
	maxKeys int
}

// Ensure Provider implements the interfaces.
var (
	_ provider.Provider          = (*Provider)(nil)
	_ provider.ObjectGetter      = (*Provider)(nil)
	_ provider.ObjectPutter      = (*Provider)(nil)
	_ provider.ObjectDeleter     = (*Provider)(nil)
	_ provider.ObjectCopier      = (*Provider)(nil)
	_ provider.LargeObjectPutter = (*Provider)(nil)
)

// New creates a new S3 provider with the given configuration.
//
// The provider uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.ProviderError{
			Op:        "New",
			Provider:  provider.ProviderS3,
			Container: cfg.Bucket,
			Err:       err,
		}
	}

	// Build S3 client options
	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}

	// Custom endpoint for S3-compatible stores
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	return &Provider{
		client:  client,
		bucket:  cfg.Bucket,
		maxKeys: maxKeys,
	}, nil
}

// List enumerates objects with the given prefix, one ListObjectsV2 page at a time.
//
// With a delimiter, S3 common prefixes are merged into the stream in key order
// as entries whose key ends in the delimiter.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (provider.ObjectIterator, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		MaxKeys: aws.Int32(int32(clampMaxKeys(opts.PageSize, p.maxKeys))),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Delimiter != "" {
		input.Delimiter = aws.String(opts.Delimiter)
	}

	pager := s3.NewListObjectsV2Paginator(p.client, input)
	return provider.NewPageIterator(ctx, func(ctx context.Context) ([]provider.ObjectSummary, bool, error) {
		output, err := pager.NextPage(ctx)
		if err != nil {
			return nil, false, p.wrapError("List", opts.Prefix, err)
		}
		return mergePage(output.Contents, output.CommonPrefixes), pager.HasMorePages(), nil
	}), nil
}

// mergePage interleaves objects and common prefixes of one page in key order.
func mergePage(contents []types.Object, prefixes []types.CommonPrefix) []provider.ObjectSummary {
	out := make([]provider.ObjectSummary, 0, len(contents)+len(prefixes))
	i, j := 0, 0
	for i < len(contents) || j < len(prefixes) {
		if j >= len(prefixes) || (i < len(contents) && aws.ToString(contents[i].Key) < aws.ToString(prefixes[j].Prefix)) {
			obj := contents[i]
			out = append(out, provider.ObjectSummary{
				Key:          aws.ToString(obj.Key),
				Size:         uint64(max(aws.ToInt64(obj.Size), 0)),
				ETag:         cleanETag(aws.ToString(obj.ETag)),
				LastModified: aws.ToTime(obj.LastModified),
			})
			i++
			continue
		}
		out = append(out, provider.ObjectSummary{Key: aws.ToString(prefixes[j].Prefix)})
		j++
	}
	return out
}

// Head returns metadata for a single object.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	input := &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}

	output, err := p.client.HeadObject(ctx, input)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}

	meta := &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{
			Key:          key,
			Size:         uint64(max(aws.ToInt64(output.ContentLength), 0)),
			ContentType:  aws.ToString(output.ContentType),
			ETag:         cleanETag(aws.ToString(output.ETag)),
			LastModified: aws.ToTime(output.LastModified),
		},
		Metadata: output.Metadata,
	}

	return meta, nil
}

// GetObject downloads an object as a stream.
func (p *Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	output, err := p.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(p.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	return output.Body, aws.ToInt64(output.ContentLength), nil
}

// PutObject uploads an object.
//
// S3 has no relative expiry; DeleteAfter is converted to an absolute Expires
// header together with DeleteAt. Actual removal needs a lifecycle rule.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts provider.PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentLength >= 0 {
		input.ContentLength = aws.Int64(contentLength)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if expires := expiryOf(opts); !expires.IsZero() {
		input.Expires = aws.Time(expires)
	}

	_, err := p.client.PutObject(ctx, input)
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

// PutLargeObject uploads body as a multipart upload with SegmentSize parts.
// The upload is aborted if any part fails.
func (p *Provider) PutLargeObject(ctx context.Context, key string, body io.Reader, opts provider.LargeObjectOptions) error {
	if opts.SegmentSize < MinPartSize {
		opts.SegmentSize = MinPartSize
	}

	create := &s3.CreateMultipartUploadInput{Bucket: aws.String(p.bucket), Key: aws.String(key)}
	if opts.ContentType != "" {
		create.ContentType = aws.String(opts.ContentType)
	}
	if expires := expiryOf(opts.PutOptions); !expires.IsZero() {
		create.Expires = aws.Time(expires)
	}
	out, err := p.client.CreateMultipartUpload(ctx, create)
	if err != nil {
		return p.wrapError("CreateMultipartUpload", key, err)
	}
	uploadID := aws.ToString(out.UploadId)

	parts, err := p.uploadParts(ctx, key, uploadID, body, opts.SegmentSize)
	if err != nil {
		_ = p.AbortMultipartUpload(ctx, key, uploadID)
		return err
	}

	_, err = p.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(p.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		_ = p.AbortMultipartUpload(ctx, key, uploadID)
		return p.wrapError("CompleteMultipartUpload", key, err)
	}
	return nil
}

func (p *Provider) uploadParts(ctx context.Context, key, uploadID string, body io.Reader, partSize int64) ([]types.CompletedPart, error) {
	var parts []types.CompletedPart
	buf := make([]byte, partSize)
	for partNumber := int32(1); ; partNumber++ {
		n, readErr := io.ReadFull(body, buf)
		if n == 0 && readErr != nil {
			if readErr == io.EOF && partNumber > 1 {
				return parts, nil
			}
			if readErr != io.EOF {
				return nil, p.wrapError("UploadPart", key, readErr)
			}
		}

		out, err := p.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(p.bucket),
			Key:           aws.String(key),
			UploadId:      aws.String(uploadID),
			PartNumber:    aws.Int32(partNumber),
			Body:          bytes.NewReader(buf[:n]),
			ContentLength: aws.Int64(int64(n)),
		})
		if err != nil {
			return nil, p.wrapError("UploadPart", key, err)
		}
		parts = append(parts, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(partNumber)})

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return parts, nil
		}
		if readErr != nil {
			return nil, p.wrapError("UploadPart", key, readErr)
		}
	}
}

// AbortMultipartUpload aborts a multipart upload.
func (p *Provider) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := p.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{Bucket: aws.String(p.bucket), Key: aws.String(key), UploadId: aws.String(uploadID)})
	if err != nil {
		return p.wrapError("AbortMultipartUpload", key, err)
	}
	return nil
}

// DeleteObject deletes an object.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(p.bucket), Key: aws.String(key)})
	if err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	return nil
}

// CopyObject performs a server-side copy within the bucket.
func (p *Provider) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	_, err := p.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(p.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(p.bucket, srcKey)),
	})
	if err != nil {
		return p.wrapError("CopyObject", srcKey, err)
	}
	return nil
}

// Close releases any resources held by the provider.
// The S3 client doesn't require explicit cleanup, but this satisfies the interface.
func (p *Provider) Close() error {
	return nil
}

// wrapError converts S3 errors to provider errors with appropriate sentinel errors.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:        op,
		Provider:  provider.ProviderS3,
		Container: p.bucket,
		Key:       key,
		Err:       err,
	}

	// Check for specific S3 error types first
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket

	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		wrapped.Err = provider.ErrNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = provider.ErrContainerNotFound
		return wrapped
	}

	// Check smithy API errors for error codes
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "NoSuchKey", "NotFound":
			wrapped.Err = provider.ErrNotFound
		case "NoSuchBucket":
			wrapped.Err = provider.ErrContainerNotFound
		case "AccessDenied", "Forbidden":
			wrapped.Err = provider.ErrAccessDenied
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			wrapped.Err = provider.ErrInvalidCredentials
		case "SlowDown", "Throttling", "RequestLimitExceeded":
			wrapped.Err = provider.ErrThrottled
		case "ServiceUnavailable", "InternalError":
			wrapped.Err = provider.ErrProviderUnavailable
		}
		return wrapped
	}

	// Fallback: check error message for common cases
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "NoSuchKey") || strings.Contains(errMsg, "NotFound") || strings.Contains(errMsg, "404"):
		wrapped.Err = provider.ErrNotFound
	case strings.Contains(errMsg, "NoSuchBucket"):
		wrapped.Err = provider.ErrContainerNotFound
	case strings.Contains(errMsg, "AccessDenied") || strings.Contains(errMsg, "Forbidden") || strings.Contains(errMsg, "403"):
		wrapped.Err = provider.ErrAccessDenied
	case strings.Contains(errMsg, "InvalidAccessKeyId") || strings.Contains(errMsg, "SignatureDoesNotMatch"):
		wrapped.Err = provider.ErrInvalidCredentials
	case strings.Contains(errMsg, "SlowDown") || strings.Contains(errMsg, "Throttling") || strings.Contains(errMsg, "429"):
		wrapped.Err = provider.ErrThrottled
	case strings.Contains(errMsg, "ServiceUnavailable") || strings.Contains(errMsg, "503"):
		wrapped.Err = provider.ErrProviderUnavailable
	}

	return wrapped
}

// expiryOf folds DeleteAt and DeleteAfter into one absolute time,
// picking the earlier when both are set.
func expiryOf(opts provider.PutOptions) time.Time {
	at := opts.DeleteAt
	if opts.DeleteAfter > 0 {
		rel := time.Now().Add(opts.DeleteAfter)
		if at.IsZero() || rel.Before(at) {
			at = rel
		}
	}
	return at
}

// copySource builds the URL-encoded CopySource value ("bucket/key").
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// cleanETag removes surrounding quotes from an ETag value.
// S3 returns ETags with quotes, e.g., "d41d8cd98f00b204e9800998ecf8427e".
func cleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}
