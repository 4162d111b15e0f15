package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dagger/formu/internal/dagger"
)

// CheckGoModTidy fails when "go mod tidy" would change go.mod or go.sum.
//
// +check
func (f *Formu) CheckGoModTidy(ctx context.Context) (string, error) {
	return f.checkUnchanged(ctx, []string{"go", "mod", "tidy"}, "go.mod", "go.sum")
}

// checkUnchanged snapshots files, runs cmd, and fails with the diff when cmd
// rewrote any of them.
func (f *Formu) checkUnchanged(ctx context.Context, cmd []string, files ...string) (string, error) {
	ctr := f.goContainer()
	diffs := make([]string, 0, len(files))
	for _, file := range files {
		ctr = ctr.WithExec([]string{"cp", file, file + ".orig"})
		diffs = append(diffs, fmt.Sprintf("diff -u %[1]s.orig %[1]s", file))
	}

	out, err := ctr.
		WithExec(cmd).
		WithExec([]string{"sh", "-c", strings.Join(diffs, " && ")}).
		Stdout(ctx)

	name := strings.Join(cmd, " ")
	listed := strings.Join(files, ", ")

	var e *dagger.ExecError
	switch {
	case errors.As(err, &e):
		return "", fmt.Errorf("%s changed %s: run it and commit the result\n\n%s", name, listed, e.Stdout)
	case err != nil:
		return "", fmt.Errorf("running %s: %w", name, err)
	}

	return fmt.Sprintf("%s left %s unchanged: %s", name, listed, out), nil
}
