// Package google holds what the Google API connectors share: mapping API
// errors to domain errors and throttling requests under the per-user
// quota.
package google
