package service

import "errors"

var ErrIDExhausted = errors.New("could not assign a problem id")
