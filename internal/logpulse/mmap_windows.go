//go:build windows

package logpulse

import "os"

// mmapFile falls back to a plain read on windows, where unix.Mmap is
// unavailable. The tailer's algorithm only requires a byte slice of the
// file's current contents; it does not depend on the mapping being a true
// OS-level mmap.
func mmapFile(f *os.File, size int64) ([]byte, func() error, error) {
	if size == 0 {
		return nil, func() error { return nil }, nil
	}
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, nil, err
	}
	return buf, func() error { return nil }, nil
}
