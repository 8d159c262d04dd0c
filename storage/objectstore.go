package storage

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// objectStore speaks the S3 wire protocol. All three variants use it with
// their own credential shape and endpoint convention.
type objectStore struct {
	client  *s3.Client
	bucket  string
	variant Variant
	o       options
}

type clientParams struct {
	endpoint  string
	region    string
	accessKey string
	secretKey string
	pathStyle bool
}

func newObjectStore(variant Variant, bucket string, p clientParams, o options) *objectStore {
	opts := s3.Options{
		Region:       p.region,
		Credentials:  credentials.NewStaticCredentialsProvider(p.accessKey, p.secretKey, ""),
		UsePathStyle: p.pathStyle,
		// Retries are owned by the execution engine.
		Retryer:                    aws.NopRetryer{},
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if p.endpoint != "" {
		opts.BaseEndpoint = aws.String(p.endpoint)
	}
	if o.httpClient != nil {
		opts.HTTPClient = o.httpClient
	}

	return &objectStore{
		client:  s3.New(opts),
		bucket:  bucket,
		variant: variant,
		o:       o,
	}
}

func (s *objectStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.o.timeout)
}

func (s *objectStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(objectKey(prefix)),
	})

	entries := []Entry{}
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, classify(s.variant, "list", prefix, err)
		}
		for _, obj := range page.Contents {
			entries = append(entries, Entry{
				Path:    aws.ToString(obj.Key),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	return entries, nil
}

func (s *objectStore) Get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(path)),
	})
	if err != nil {
		return nil, classify(s.variant, "get", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, classify(s.variant, "get", path, err)
	}
	return data, nil
}

func (s *objectStore) Put(ctx context.Context, path string, data []byte) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey(path)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return classify(s.variant, "put", path, err)
}

func (s *objectStore) Delete(ctx context.Context, path string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(path)),
	})
	return classify(s.variant, "delete", path, err)
}

// Object keys never start with a slash; "/" addresses the bucket root.
func objectKey(path string) string {
	return strings.TrimLeft(path, "/")
}
