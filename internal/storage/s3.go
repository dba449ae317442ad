package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"textanywhere/internal/errs"
)

const defaultRegion = "us-east-1"

// s3API is the subset of the S3 client the backend calls.
type s3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 lists one prefix level of an S3-compatible bucket. Roots take the form
// bucket/prefix; handle paths are bucket/key.
type S3 struct {
	client s3API
}

// NewS3 builds a client from opts.
func NewS3(ctx context.Context, opts Options) (*S3, error) {
	region := opts.Region
	if region == "" {
		region = defaultRegion
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if p := credentialsProvider(opts); p != nil {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(p))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, backendErr(ProtocolS3, "", "connect", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3WithClient(client), nil
}

// credentialsProvider picks the credentials for opts. Anonymous access wins
// over explicit keys; nil means the default AWS credential chain.
func credentialsProvider(opts Options) aws.CredentialsProvider {
	switch {
	case opts.Anonymous:
		return aws.AnonymousCredentials{}
	case opts.AccessKeyID != "" && opts.SecretAccessKey != "":
		return credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")
	}
	return nil
}

func newS3WithClient(client s3API) *S3 {
	return &S3{client: client}
}

func (s *S3) Protocol() string { return ProtocolS3 }

func (s *S3) SupportsTimestamps() bool { return true }

// splitBucket parses bucket/prefix, normalising the prefix to end in "/".
func splitBucket(root string) (bucket, prefix string) {
	root = strings.TrimPrefix(root, "s3://")
	root = strings.TrimPrefix(root, "/")
	bucket, prefix, _ = strings.Cut(root, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix
}

// List returns the entries one level under root. A root without a trailing
// "/" that names an object lists as that single object.
func (s *S3) List(ctx context.Context, root string) ([]FileHandle, error) {
	bucket, prefix := splitBucket(root)
	if bucket == "" {
		return nil, errs.Config("filepath", root, "missing bucket name")
	}

	handles, err := s.listPrefix(ctx, root, bucket, prefix)
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 && prefix != "" && !strings.HasSuffix(root, "/") {
		return s.listObject(ctx, root, bucket, strings.TrimSuffix(prefix, "/"))
	}
	return handles, nil
}

func (s *S3) listPrefix(ctx context.Context, root, bucket, prefix string) ([]FileHandle, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Delimiter: aws.String("/"),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var handles []FileHandle
	p := s3.NewListObjectsV2Paginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, s.listErr(ctx, root, err)
		}
		for _, cp := range page.CommonPrefixes {
			dir := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			handles = append(handles, FileHandle{
				Path: bucket + "/" + dir,
				Name: path.Base(dir),
				Kind: KindDirectory,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// Folder markers are zero-byte keys ending in "/".
			if key == prefix || strings.HasSuffix(key, "/") {
				continue
			}
			handles = append(handles, objectHandle(bucket, obj))
		}
	}
	return handles, nil
}

// listObject looks key up exactly. A key sorts first among the keys it
// prefixes, so one result is enough.
func (s *S3) listObject(ctx context.Context, root, bucket, key string) ([]FileHandle, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(key),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, s.listErr(ctx, root, err)
	}
	for _, obj := range out.Contents {
		if aws.ToString(obj.Key) == key {
			return []FileHandle{objectHandle(bucket, obj)}, nil
		}
	}
	return nil, nil
}

func (s *S3) listErr(ctx context.Context, root string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return backendErr(ProtocolS3, root, "list", err)
}

func objectHandle(bucket string, obj types.Object) FileHandle {
	key := aws.ToString(obj.Key)
	return FileHandle{
		Path:         bucket + "/" + key,
		Name:         path.Base(key),
		Kind:         KindRegular,
		Size:         aws.ToInt64(obj.Size),
		LastModified: aws.ToTime(obj.LastModified).UTC(),
	}
}

func (s *S3) Open(ctx context.Context, h FileHandle) (io.ReadCloser, error) {
	bucket, key, ok := strings.Cut(h.Path, "/")
	if !ok || key == "" {
		return nil, backendErr(ProtocolS3, h.Path, "fetch", fmt.Errorf("not an object path"))
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, backendErr(ProtocolS3, h.Path, "fetch", err)
	}
	return out.Body, nil
}

func (s *S3) LocalPath(FileHandle) (string, bool) { return "", false }

func (s *S3) Close() error { return nil }
