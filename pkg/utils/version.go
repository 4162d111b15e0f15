// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Set at build time via -ldflags.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent identifies formu to the backend.
func UserAgent() string {
	return "formu/" + Version + " (" + Sha + ")"
}
