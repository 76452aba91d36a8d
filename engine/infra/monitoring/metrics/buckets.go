package metrics

// HTTPDurationBuckets are latency buckets for HTTP requests, in seconds.
var HTTPDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// JobDurationBuckets cover a whole translation run, from a failed fetch to a
// long paper with several builds.
var JobDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600}

// SlotWaitBuckets cover the time a job polls before it is admitted.
var SlotWaitBuckets = []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300, 900}
