package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// checksumMetaKey holds the plaintext checksum in object user metadata.
const checksumMetaKey = "sha256"

type S3Options struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint targets an S3-compatible service; path-style addressing is used when set.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Remote mirrors into a bucket under an optional key prefix.
type S3Remote struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Remote loads AWS configuration from the environment and shared
// config files. Static keys in opts take precedence.
func NewS3Remote(ctx context.Context, opts S3Options) (*S3Remote, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 remote requires a bucket")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	return &S3Remote{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   opts.Bucket,
		prefix:   normalizePrefix(opts.Prefix),
	}, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (r *S3Remote) objectKey(key string) string {
	return r.prefix + key
}

func (r *S3Remote) List(ctx context.Context) ([]Object, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(r.bucket)}
	if r.prefix != "" {
		input.Prefix = aws.String(r.prefix)
	}

	var out []Object
	pager := s3.NewListObjectsV2Paginator(r.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", r.bucket, r.prefix, err)
		}
		for _, obj := range page.Contents {
			full := aws.ToString(obj.Key)
			key := strings.TrimPrefix(full, r.prefix)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			// Listing carries no user metadata.
			head, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(r.bucket),
				Key:    aws.String(full),
			})
			if err != nil {
				return nil, fmt.Errorf("head %s: %w", full, err)
			}
			out = append(out, Object{
				Key:      key,
				Checksum: head.Metadata[checksumMetaKey],
				Size:     aws.ToInt64(obj.Size),
			})
		}
	}
	return out, nil
}

func (r *S3Remote) Put(ctx context.Context, key, checksum string, body io.Reader, size int64) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := r.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(r.objectKey(key)),
		Body:          body,
		ContentLength: aws.Int64(size),
		Metadata:      map[string]string{checksumMetaKey: checksum},
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

func (r *S3Remote) Get(ctx context.Context, key string, w io.Writer) error {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("downloading %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return nil
}

func (r *S3Remote) ValidateSetup(ctx context.Context) error {
	if _, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(r.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", r.bucket, err)
	}
	return nil
}

var _ Remote = (*S3Remote)(nil)
