package fiberloop

import "sync"

// defaultRuntime is the process-wide Runtime backing the package-level
// Spawn/YieldNow functions, the Go translation of the source's
// `lazy_static! { static ref MIOFIB: Miofib = Miofib::new(); }`: built once,
// on first use, with the default pool size.
var (
	defaultRuntimeOnce sync.Once
	defaultRuntimeVal  *Runtime
	defaultRuntimeErr  error
)

func defaultRuntime() (*Runtime, error) {
	defaultRuntimeOnce.Do(func() {
		defaultRuntimeVal, defaultRuntimeErr = NewRuntime()
	})
	return defaultRuntimeVal, defaultRuntimeErr
}

// Spawn schedules task to run as a new Fiber on the default process-wide
// Runtime, chosen round-robin across its worker loops - the package-level
// translation of the source's top-level `pub fn spawn`.
func Spawn(task func()) error {
	rt, err := defaultRuntime()
	if err != nil {
		return err
	}
	return rt.Spawn(task)
}

// YieldNow cooperatively suspends the calling fiber and returns control to
// its owning loop - the translation of the source's top-level
// `pub fn yield_now`. It registers no readiness of its own: the loop resumes
// the fiber only when its poller reports readiness under the fiber's token
// (for example for a handle the fiber registered via AsyncIO.NotifyOn), so a
// fiber that yields with nothing registered stays suspended. Panics with
// *NotInFiberError if called from a goroutine that isn't running as a fiber.
func YieldNow() {
	coSwitchOut()
}
