package sensing

import "errors"

var ErrNoMoreReadings = errors.New("sensing: no more readings")
