package utils

import "github.com/spf13/afero"

// Dependency injection for Afero. Plugins open files through this so that
// tests can run against an in-memory filesystem.
type Fs afero.Fs

type File afero.File

func NewOsFs() Fs {
	return afero.NewOsFs()
}

func NewMemFs() Fs {
	return afero.NewMemMapFs()
}
