package main

import (
	"context"
	"fmt"
	"path"

	"dagger/formu/internal/dagger"
)

// bucket holds the S3-compatible bucket credentials shared by every upload.
type bucket struct {
	endpoint        *dagger.Secret
	name            *dagger.Secret
	accessKeyId     *dagger.Secret
	secretAccessKey *dagger.Secret
}

// upload syncs artifacts into the bucket under each prefix in turn, e.g.
// "v1.0.0" and "latest".
func (f *Formu) upload(
	ctx context.Context,
	b bucket,
	artifacts *dagger.Directory,
	prefixes ...string,
) error {
	bucketName, err := b.name.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bucket name: %w", err)
	}

	endpointUrl, err := b.endpoint.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get endpoint: %w", err)
	}

	// Use AWS CLI container for S3-compatible uploads
	awsCli := dag.Container().
		From("amazon/aws-cli:latest").
		WithSecretVariable("AWS_ACCESS_KEY_ID", b.accessKeyId).
		WithSecretVariable("AWS_SECRET_ACCESS_KEY", b.secretAccessKey).
		WithEnvVariable("AWS_DEFAULT_REGION", "auto").
		WithDirectory("/artifacts", artifacts).
		WithWorkdir("/artifacts")

	for _, prefix := range prefixes {
		destination := fmt.Sprintf("s3://%s", path.Join(bucketName, prefix))

		_, err = awsCli.
			WithExec([]string{
				"aws", "s3", "sync", ".",
				destination,
				"--endpoint-url", endpointUrl,
			}).
			Sync(ctx)
		if err != nil {
			return fmt.Errorf("failed to upload artifacts to %s: %w", prefix, err)
		}
	}

	return nil
}

// ReleaseLatest builds versioned release binaries and uploads them under both
// the version and "latest"
func (f *Formu) ReleaseLatest(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucketName *dagger.Secret,

	// Bucket access key ID
	accessKeyId *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	artifacts := f.BuildRelease(ctx, version, commit)
	b := bucket{
		endpoint:        endpoint,
		name:            bucketName,
		accessKeyId:     accessKeyId,
		secretAccessKey: secretAccessKey,
	}

	if err := f.upload(ctx, b, artifacts, version, "latest"); err != nil {
		return artifacts, fmt.Errorf("could not upload release artifacts: %w", err)
	}

	return artifacts, nil
}

// Nightly builds and uploads nightly artifacts
func (f *Formu) Nightly(
	ctx context.Context,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucketName *dagger.Secret,

	// Bucket access key ID
	accessKeyId *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	const prefix = "nightly"
	artifacts := f.BuildRelease(ctx, prefix, commit)
	b := bucket{
		endpoint:        endpoint,
		name:            bucketName,
		accessKeyId:     accessKeyId,
		secretAccessKey: secretAccessKey,
	}

	return artifacts, f.upload(ctx, b, artifacts, prefix)
}
