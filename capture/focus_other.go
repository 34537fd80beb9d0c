//go:build !windows

package capture

// GameFocus has no foreground-window probe outside Windows; capture always
// runs.
func GameFocus(titlePart string) FocusFunc {
	return nil
}
