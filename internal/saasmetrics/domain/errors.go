package domain

import "errors"

var (
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidRange     = errors.New("invalid period range")
	ErrInvalidEvent     = errors.New("invalid recalculation event")
	ErrInvalidEvolution = errors.New("invalid evolution window")
	ErrSnapshotNotFound = errors.New("metrics snapshot not found")
	ErrSnapshotExists   = errors.New("metrics snapshot already exists")
	ErrInvalidSnapshot  = errors.New("invalid metrics snapshot")
)
