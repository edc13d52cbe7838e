package render

import "time"

var testTime = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
