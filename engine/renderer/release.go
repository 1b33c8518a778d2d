package renderer

// releaser collects cleanup functions while a multi-step build is in
// progress. If the build fails, release runs them in reverse order of
// registration. Once the build succeeds the owner calls disarm and the
// objects are handed over.
type releaser struct {
	steps []func()
}

func (r *releaser) add(fn func()) {
	r.steps = append(r.steps, fn)
}

// release undoes every registered step, newest first. Safe to call after
// disarm, in which case it does nothing.
func (r *releaser) release() {
	for i := len(r.steps) - 1; i >= 0; i-- {
		r.steps[i]()
	}
	r.steps = nil
}

func (r *releaser) disarm() {
	r.steps = nil
}
