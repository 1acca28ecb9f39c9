package detection

import "github.com/pkg/errors"

// ErrDecodeInconsistency reports counts that do not fit the decoded buffer.
var ErrDecodeInconsistency = errors.New("decode inconsistency")

// ErrUnknownParser is returned by ParserByName for unregistered conventions.
var ErrUnknownParser = errors.New("unknown parser")
