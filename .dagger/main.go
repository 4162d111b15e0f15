// Formu CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/formu/internal/dagger"
)

// Formu is the main module for the formu CI/CD pipeline
type Formu struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Formu CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", ".formu"]
	source *dagger.Directory,
) *Formu {
	return &Formu{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with CGO disabled
// and the project source mounted.
//
// It is the shared foundation for tests, builds, and linting.
func (f *Formu) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", f.Source)
}

// Test runs the formu unit tests via "go test"
func (f *Formu) Test(ctx context.Context) (string, error) {
	return f.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}

// TestRace runs the unit tests under the race detector, which needs CGO.
func (f *Formu) TestRace(ctx context.Context) (string, error) {
	return f.goContainer().
		WithEnvVariable("CGO_ENABLED", "1").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc"}).
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}
