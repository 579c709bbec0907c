// Package core defines the domain model of the hunt engine.
//
// # Overview
//
// The core package provides:
//   - Indicator types and the Classify function that assigns a kind to any string
//   - The HuntJob state machine (pending -> running -> completed | failed)
//   - Match records and their review attribution
//   - Typed errors (ValidationError, NotFoundError, ConflictError, SourceUnavailableError)
//   - Storage interfaces consumed by the threat and api packages
//
// Every storage call takes the organization id as an explicit parameter.
package core
