package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// DefaultBucket holds review results when none is configured.
const DefaultBucket = "results"

// S3API is the subset of the S3 client the repository uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Config points at an S3 compatible endpoint such as MinIO.
type S3Config struct {
	// "http://127.0.0.1:9000"; empty uses AWS.
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

// ConnectS3 builds a client for cfg with static credentials.
func ConnectS3(cfg S3Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return s3.NewFromConfig(aws.Config{Region: region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		}
	})
}

// S3Repository stores results as JSON objects in one bucket.
type S3Repository struct {
	client S3API
	bucket string
}

var _ domain.ResultRepository = (*S3Repository)(nil)

func NewS3Repository(client S3API, bucket string) *S3Repository {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &S3Repository{client: client, bucket: bucket}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (r *S3Repository) EnsureBucket(ctx context.Context) error {
	if _, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(r.bucket)}); err == nil {
		return nil
	}
	_, err := r.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(r.bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("create bucket %s: %w", r.bucket, err)
	}
	return nil
}

func (r *S3Repository) SaveReview(ctx context.Context, res *review.ReviewResult) error {
	return r.put(ctx, ReviewsDir, res.ID, res)
}

func (r *S3Repository) LoadReview(ctx context.Context, id string) (*review.ReviewResult, error) {
	var out review.ReviewResult
	if err := r.get(ctx, ReviewsDir, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *S3Repository) ListReviews(ctx context.Context) ([]domain.ResultSummary, error) {
	ids, err := r.list(ctx, ReviewsDir)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ResultSummary, 0, len(ids))
	for _, id := range ids {
		res, err := r.LoadReview(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Summarize(res))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.After(out[j].CompletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *S3Repository) SaveEvaluation(ctx context.Context, res *evaluation.Result) error {
	return r.put(ctx, EvaluationsDir, res.ID, res)
}

func (r *S3Repository) LoadEvaluation(ctx context.Context, id string) (*evaluation.Result, error) {
	var out evaluation.Result
	if err := r.get(ctx, EvaluationsDir, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *S3Repository) SaveBaseline(ctx context.Context, res *evaluation.Result) error {
	return r.put(ctx, BaselinesDir, res.ID, res)
}

func (r *S3Repository) LoadBaseline(ctx context.Context, id string) (*evaluation.Result, error) {
	if id != "" {
		var out evaluation.Result
		if err := r.get(ctx, BaselinesDir, id, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}
	ids, err := r.list(ctx, BaselinesDir)
	if err != nil {
		return nil, err
	}
	var latest *evaluation.Result
	for _, bid := range ids {
		var b evaluation.Result
		if err := r.get(ctx, BaselinesDir, bid, &b); err != nil {
			return nil, err
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = &b
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func objectKey(dir, id string) (string, error) {
	rid, err := domain.NewResultID(id)
	if err != nil {
		return "", err
	}
	return dir + "/" + rid.String() + ".json", nil
}

func (r *S3Repository) put(ctx context.Context, dir, id string, v any) error {
	key, err := objectKey(dir, id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", dir, err)
	}
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", r.bucket, key, err)
	}
	return nil
}

func (r *S3Repository) get(ctx context.Context, dir, id string, v any) error {
	key, err := objectKey(dir, id)
	if err != nil {
		return err
	}
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(r.bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%s %s: %w", dir, id, domain.ErrNotFound)
		}
		return fmt.Errorf("get %s/%s: %w", r.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("read %s/%s: %w", r.bucket, key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// list returns the ids stored under dir, following continuation tokens.
func (r *S3Repository) list(ctx context.Context, dir string) ([]string, error) {
	var ids []string
	var token *string
	for {
		out, err := r.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(r.bucket),
			Prefix:            aws.String(dir + "/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", r.bucket, dir, err)
		}
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), dir+"/")
			if id, ok := strings.CutSuffix(name, ".json"); ok && !strings.Contains(id, "/") {
				ids = append(ids, id)
			}
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(ids)
	return ids, nil
}
