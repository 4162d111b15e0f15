package main

import (
	"context"
	"fmt"

	"dagger/formu/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// lintOpts returns the GolangcilintOpts shared by CheckLint and FixLint,
// layered on goContainer() so the Go caches are already mounted.
func (f *Formu) lintOpts() dagger.GolangcilintOpts {
	base := f.goContainer().
		WithExec([]string{
			"go",
			"install",
			fmt.Sprintf("github.com/golangci/golangci-lint/v2/cmd/golangci-lint@%s", golangciLintVersion),
		})

	return dagger.GolangcilintOpts{
		BaseCtr: base,
		Config:  f.Source.File(".golangci.yml"),
	}
}

// CheckLint runs golangci-lint against the formu source code without applying fixes.
func (f *Formu) CheckLint(ctx context.Context) (string, error) {
	return dag.Golangcilint(f.Source, f.lintOpts()).Check(ctx)
}

// FixLint runs golangci-lint against the formu source code with --fix, applying
// automatic fixes where possible, and returns the modified source directory.
func (f *Formu) FixLint(ctx context.Context) *dagger.Directory {
	return dag.Golangcilint(f.Source, f.lintOpts()).Lint()
}
