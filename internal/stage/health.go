package stage

// Health reports whether a stage's collaborators are usable. Runners check
// it once before claiming any rows; an unready stage aborts the run instead
// of burning retry budget on rows it cannot process.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unready Health record carrying the reason.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
