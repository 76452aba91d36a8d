package routes

const version = "v0"

// Version returns the API version used in routing (e.g., "v0").
func Version() string {
	return version
}

// Base returns the versioned API base path (e.g., "/api/v0").
func Base() string {
	return "/api/" + Version()
}

// Jobs returns the jobs base path (e.g., "/api/v0/jobs").
func Jobs() string {
	return Base() + "/jobs"
}

// Artifacts returns the public artifact path (e.g., "/api/v0/artifacts").
func Artifacts() string {
	return Base() + "/artifacts"
}

func Slots() string {
	return Base() + "/slots"
}

// HealthVersioned returns the versioned health path.
func HealthVersioned() string {
	return Base() + "/health"
}
