package composer

import "errors"

var (
	ErrInvalidEnvironment = errors.New("composer: invalid environment identifier")
	ErrInvalidRegion      = errors.New("composer: invalid region")
	ErrInvalidAccount     = errors.New("composer: invalid account")
	ErrMissingAsset       = errors.New("composer: missing function asset directory")
	ErrDuplicateName      = errors.New("composer: duplicate resource name")
	ErrInvalidGraph       = errors.New("composer: invalid graph")
)
