//go:build windows

package shm

// The segment layout is portable but no Windows mapping backend is wired up
// yet; CreateFileMapping support would slot in here.

func CreateRegion(name string, size int) (*Region, error) {
	return nil, ErrNotSupported
}

func OpenRegion(name string) (*Region, error) {
	return nil, ErrNotSupported
}

func UnmapRegion(r *Region) error {
	return ErrNotSupported
}

func Unlink(name string) error {
	return ErrNotSupported
}
