// Package reconcile compares the declared manifest with the repositories present in the workspace and
// drives list, check, fix, clone, update, and remove. Every mutation keeps each working tree paired with
// its metadata directory under the configured roots.
package reconcile
