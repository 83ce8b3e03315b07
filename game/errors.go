package game

import "errors"

// ErrParse is wrapped by every board, field, team and snapshot decoding error.
var ErrParse = errors.New("parse error")
