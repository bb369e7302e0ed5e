// Package constants holds configuration values shared across layers.
package constants

const (
	PubSubProviderLocal  = "local"
	PubSubProviderGoogle = "google"
)

const (
	// ResetPasswordSubject is the subject of password reset emails.
	ResetPasswordSubject = "Reset password token"
)
