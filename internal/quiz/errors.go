package quiz

import "errors"

var (
	ErrSourceUnavailable  = errors.New("question source unavailable")
	ErrNoSelection        = errors.New("no option selected")
	ErrIndexOutOfRange    = errors.New("question index out of range")
	ErrPersistenceCorrupt = errors.New("persisted session is corrupt")
	ErrSuspended          = errors.New("session is suspended")
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindSourceUnavailable
	KindNoSelection
	KindIndexOutOfRange
	KindPersistenceCorrupt
	KindSuspended
)

func (k ErrorKind) String() string {
	switch k {
	case KindSourceUnavailable:
		return "source_unavailable"
	case KindNoSelection:
		return "no_selection"
	case KindIndexOutOfRange:
		return "index_out_of_range"
	case KindPersistenceCorrupt:
		return "persistence_corrupt"
	case KindSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrSourceUnavailable):
		return KindSourceUnavailable
	case errors.Is(err, ErrNoSelection):
		return KindNoSelection
	case errors.Is(err, ErrIndexOutOfRange):
		return KindIndexOutOfRange
	case errors.Is(err, ErrPersistenceCorrupt):
		return KindPersistenceCorrupt
	case errors.Is(err, ErrSuspended):
		return KindSuspended
	default:
		return KindUnknown
	}
}
