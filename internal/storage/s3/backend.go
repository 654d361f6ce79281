// Package s3 implements the driver behind the "s3" protocol on top of
// aws-sdk-go-v2. One backend serves one bucket; object keys map directly
// onto normalized paths.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
	"github.com/fsbridge/fsbridge/pkg/types"
)

// Backend serves one S3 bucket.
type Backend struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

// New creates an S3 backend for cfg.Bucket.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backend, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 config: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	logger.Debug("S3 backend configured", "bucket", cfg.Bucket, "region", cfg.Region)
	return &Backend{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func (b *Backend) Protocol() string { return "s3" }

// key strips the leading slash; bucket keys are not rooted.
func key(path string) string {
	return strings.TrimPrefix(path, "/")
}

func (b *Backend) GetRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	if offset < 0 {
		return nil, nil
	}
	var rangeHeader *string
	if offset > 0 || length >= 0 {
		if length >= 0 {
			if length == 0 {
				return nil, nil
			}
			rangeHeader = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
		} else {
			rangeHeader = aws.String(fmt.Sprintf("bytes=%d-", offset))
		}
	}

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(path)),
		Range:  rangeHeader,
	})
	if err != nil {
		// Reads past end-of-object come back as 416, not as data.
		if isInvalidRange(err) {
			return nil, nil
		}
		return nil, translate("get_range", path, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fserrors.IO("get_range", path, err)
	}
	return data, nil
}

func (b *Backend) Put(ctx context.Context, path string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(path)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return translate("put", path, err)
	}
	return nil
}

// Move copies src to dst and deletes src. S3 has no rename, so there is
// a brief window in which both keys exist; a crash between the two calls
// leaves the copy behind.
func (b *Backend) Move(ctx context.Context, src, dst string) error {
	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(key(dst)),
		CopySource: aws.String(b.bucket + "/" + key(src)),
	})
	if err != nil {
		return translate("move", src, err)
	}
	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(src)),
	})
	if err != nil {
		b.logger.Warn("move left source behind", "src", src, "dst", dst, "error", err)
		return translate("move", src, err)
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	_, err := b.head(ctx, path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fserrors.ErrNotFound) {
		// The key may still exist as a prefix.
		result, lerr := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(b.bucket),
			Prefix:  aws.String(key(path) + "/"),
			MaxKeys: aws.Int32(1),
		})
		if lerr != nil {
			return false, translate("exists", path, lerr)
		}
		return aws.ToInt32(result.KeyCount) > 0, nil
	}
	return false, err
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	// DeleteObject succeeds for absent keys; check first so missing paths
	// surface as not-found.
	if _, err := b.head(ctx, path); err != nil {
		return err
	}
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(path)),
	})
	if err != nil {
		return translate("delete", path, err)
	}
	return nil
}

func (b *Backend) Info(ctx context.Context, path string) (*types.ObjectInfo, error) {
	info, err := b.head(ctx, path)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, fserrors.ErrNotFound) {
		return nil, err
	}
	ok, err := b.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fserrors.E("info", path, fserrors.ErrNotFound, nil)
	}
	return &types.ObjectInfo{Path: path, Name: baseName(path), Type: types.TypeDirectory}, nil
}

// List returns the entries directly under path, with common prefixes
// reported as directories.
func (b *Backend) List(ctx context.Context, path string) ([]types.ObjectInfo, error) {
	prefix := key(path)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var entries []types.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translate("list", path, err)
		}
		for _, cp := range page.CommonPrefixes {
			dir := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			entries = append(entries, types.ObjectInfo{
				Path: dir,
				Name: baseName(dir),
				Type: types.TypeDirectory,
			})
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if k == prefix {
				continue
			}
			entries = append(entries, types.ObjectInfo{
				Path:    k,
				Name:    baseName(k),
				Size:    aws.ToInt64(obj.Size),
				Type:    types.TypeFile,
				ModTime: aws.ToTime(obj.LastModified),
				ETag:    strings.Trim(aws.ToString(obj.ETag), `"`),
			})
		}
	}
	if len(entries) == 0 && prefix != "" {
		if info, err := b.head(ctx, strings.TrimSuffix(prefix, "/")); err == nil {
			return []types.ObjectInfo{*info}, nil
		}
		return nil, fserrors.E("list", path, fserrors.ErrNotFound, nil)
	}
	return entries, nil
}

func (b *Backend) head(ctx context.Context, path string) (*types.ObjectInfo, error) {
	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(path)),
	})
	if err != nil {
		return nil, translate("info", path, err)
	}
	return &types.ObjectInfo{
		Path:    path,
		Name:    baseName(path),
		Size:    aws.ToInt64(result.ContentLength),
		Type:    types.TypeFile,
		ModTime: aws.ToTime(result.LastModified),
		ETag:    strings.Trim(aws.ToString(result.ETag), `"`),
	}, nil
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func translate(op, path string, err error) error {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fserrors.E(op, path, fserrors.ErrNotFound, err)
	}
	return fserrors.IO(op, path, err)
}

func isInvalidRange(err error) bool {
	var apiErr interface{ ErrorCode() string }
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}
