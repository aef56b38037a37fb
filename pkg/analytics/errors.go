package analytics

import "errors"

var (
	// ErrNotFound is returned by stores when a row does not exist
	ErrNotFound = errors.New("not found")

	// ErrSnapshotUnavailable is returned when a snapshot is still missing
	// after lazy initialization wrote it
	ErrSnapshotUnavailable = errors.New("analytics snapshot unavailable after initialization")

	// ErrInvalidArgument is returned for malformed caller input
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCreatorProfileMissing is returned when a creator has no profile row
	ErrCreatorProfileMissing = errors.New("creator profile not found")
)
