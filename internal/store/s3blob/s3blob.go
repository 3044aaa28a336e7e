// Package s3blob stores JSON records as S3 objects.
package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/suPer8Hu/germanleap/internal/store"
)

// API is the subset of the S3 client the bucket uses.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Options struct {
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
}

// Bucket implements jsonstore.Blobs. Keys are stored under an optional prefix.
type Bucket struct {
	api    API
	bucket string
	prefix string
}

func New(api API, bucket, prefix string) *Bucket {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Bucket{api: api, bucket: bucket, prefix: prefix}
}

// Open builds an S3 client with static credentials when given, otherwise
// the default AWS credential chain.
func Open(ctx context.Context, opts Options) (*Bucket, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	log.Printf("[store] s3 bucket=%s prefix=%q region=%s", opts.Bucket, opts.Prefix, opts.Region)
	return New(s3.NewFromConfig(awsCfg), opts.Bucket, opts.Prefix), nil
}

func (b *Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	ctxGet, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := b.api.GetObject(ctxGet, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.prefix + key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (b *Bucket) Put(ctx context.Context, key string, data []byte) error {
	ctxPut, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := b.api.PutObject(ctxPut, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.prefix + key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put failed: %w", err)
	}
	return nil
}

func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(b.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix + prefix),
	})

	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			k := strings.TrimPrefix(aws.ToString(obj.Key), b.prefix)
			if strings.HasSuffix(k, ".json") {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}
