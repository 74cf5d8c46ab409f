package filehandler

import (
	"errors"
	"fmt"

	"github.com/ncruces/zenity"
)

// ErrPickCanceled is returned when the user dismisses the file dialog.
var ErrPickCanceled = errors.New("file selection canceled")

// PickVideoFile opens a native file dialog filtered to video files and
// returns the selected path.
func PickVideoFile() (string, error) {
	selected, err := zenity.SelectFile(
		zenity.Title("Select a basketball video"),
		zenity.FileFilters{
			{Name: "Videos", Patterns: []string{"*.mp4", "*.mov", "*.avi", "*.m4v", "*.MP4", "*.MOV", "*.AVI"}},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", ErrPickCanceled
		}
		return "", fmt.Errorf("file dialog: %w", err)
	}
	return selected, nil
}
