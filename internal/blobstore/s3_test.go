package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestNewS3Store(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	defer func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	}()

	var gotOpts s3.Options
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&gotOpts)
		}
		return s3.NewFromConfig(cfg)
	}

	store, err := NewS3Store(context.Background(), Config{
		RootUser:     "minio",
		RootPassword: "minio123",
		Bucket:       "vault",
		Region:       "us-east-1",
		BaseEndpoint: "http://localhost:9000",
	})
	if err != nil {
		t.Fatalf("NewS3Store error: %v", err)
	}
	if store.bucket != "vault" {
		t.Errorf("bucket = %q, want %q", store.bucket, "vault")
	}
	if gotOpts.BaseEndpoint == nil || *gotOpts.BaseEndpoint != "http://localhost:9000" {
		t.Errorf("BaseEndpoint not applied: %v", gotOpts.BaseEndpoint)
	}
	if !gotOpts.UsePathStyle {
		t.Errorf("UsePathStyle not set")
	}
}

func TestNewS3Store_ConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	defer func() { loadDefaultAWSConfig = origLoad }()

	wantErr := errors.New("no credentials")
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, wantErr
	}

	if _, err := NewS3Store(context.Background(), Config{}); !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped config error, got %v", err)
	}
}
