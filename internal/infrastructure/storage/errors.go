package storage

import "errors"

// errNoChange aborts a Mutate cycle without writing
var errNoChange = errors.New("no change")
