package core

import (
	"errors"
	"os"
)

// https://stackoverflow.com/a/12518877
func FileExists(filePath string) (bool, error) {
	if _, err := os.Stat(filePath); err == nil {
		return true, nil
	} else if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else {
		return false, err
	}
}

func Optional[T any](optional *T, defaulT T) T {
	if optional != nil {
		return *optional
	}
	return defaulT
}

func Pointer[T any](t T) *T {
	return &t
}
