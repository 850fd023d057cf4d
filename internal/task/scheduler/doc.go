// Package scheduler keeps stored tasks and their live triggers consistent.
//
// Every mutation (add/update/delete/toggle) and every dispatcher tick runs under
// one mutex that guards storage and the trigger registry together, so a firing
// can never interleave with a concurrent edit of the same task.
//
// The dispatcher is a single polling loop supervised by
// internal/runtime/supervisor; it fires due triggers through a launch.Launcher
// and re-registers the next occurrence from the recurrence resolver.
package scheduler
