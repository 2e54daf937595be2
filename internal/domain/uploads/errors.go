package uploads

import "errors"

var (
	ErrTaskNotFound       = errors.New("upload task not found")
	ErrProgressRegression = errors.New("upload progress regressed")
	ErrProgressOutOfRange = errors.New("upload progress out of range")
	ErrTaskTerminal       = errors.New("upload task already finished")
)
