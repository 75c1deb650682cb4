// Package cloudtest points cloudintegration tests at a moto S3 server.
//
//	cloudtest.SkipIfUnavailable(t)
//	bucket := cloudtest.CreateBucket(t, ctx)
//	cloudtest.PutObjects(t, ctx, bucket, []string{"a/b.txt"})
//	p, err := s3provider.New(ctx, cloudtest.ProviderConfig(bucket))
package cloudtest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	s3provider "github.com/3leaps/swiftfs/pkg/provider/s3"
)

// moto accepts any static credentials.
const motoCredential = "testing"

var (
	// Endpoint is the moto server, overridable with MOTO_ENDPOINT.
	Endpoint = envOr("MOTO_ENDPOINT", "http://localhost:5555")
	// Region is the bucket region, overridable with MOTO_REGION.
	Region = envOr("MOTO_REGION", "us-east-1")

	sharedClient *s3.Client
	clientOnce   sync.Once
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SkipIfUnavailable skips t unless the moto API answers within two seconds.
func SkipIfUnavailable(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, Endpoint+"/moto-api/", nil)
	if err == nil {
		var resp *http.Response
		if resp, err = http.DefaultClient.Do(req); err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
	t.Skipf("moto not reachable at %s (docker run -p 5555:5000 motoserver/moto)", Endpoint)
}

func client() *s3.Client {
	clientOnce.Do(func() {
		sharedClient = s3.New(s3.Options{
			Region:       Region,
			BaseEndpoint: aws.String(Endpoint),
			UsePathStyle: true,
			Credentials:  credentials.NewStaticCredentialsProvider(motoCredential, motoCredential, ""),
		})
	})
	return sharedClient
}

// CreateBucket makes an empty bucket named after the test and empties and
// removes it on cleanup.
func CreateBucket(t *testing.T, ctx context.Context) string {
	t.Helper()
	name := strings.NewReplacer("/", "-", "_", "-").Replace(strings.ToLower(t.Name()))
	if len(name) > 50 {
		name = name[:50]
	}
	name = fmt.Sprintf("%s-%d", name, time.Now().UnixNano()%100000)

	if _, err := client().CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
		t.Fatalf("create bucket %s: %v", name, err)
	}
	t.Cleanup(func() { removeBucket(t, name) })
	return name
}

func removeBucket(t *testing.T, bucket string) {
	ctx := context.Background()
	c := client()
	pages := s3.NewListObjectsV2Paginator(c, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			t.Logf("list %s for cleanup: %v", bucket, err)
			return
		}
		for _, obj := range page.Contents {
			if _, err := c.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: obj.Key}); err != nil {
				t.Logf("delete %s: %v", aws.ToString(obj.Key), err)
			}
		}
	}
	if _, err := c.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Logf("delete bucket %s: %v", bucket, err)
	}
}

// PutObjects stores a small body under each key.
func PutObjects(t *testing.T, ctx context.Context, bucket string, keys []string) {
	t.Helper()
	for _, key := range keys {
		_, err := client().PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   strings.NewReader("content of " + key),
		})
		if err != nil {
			t.Fatalf("put %s/%s: %v", bucket, key, err)
		}
	}
}

// ProviderConfig configures the swiftfs S3 provider for bucket on moto.
func ProviderConfig(bucket string) s3provider.Config {
	return s3provider.Config{
		Bucket:          bucket,
		Endpoint:        Endpoint,
		Region:          Region,
		AccessKeyID:     motoCredential,
		SecretAccessKey: motoCredential,
		ForcePathStyle:  true,
	}
}
