package repair_service

import "errors"

var ErrSchedulerStopped = errors.New("repair scheduler stopped")
