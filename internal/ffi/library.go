package ffi

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// sharedLibExt returns the platform's dynamic library extension. The
// original implementation hardcoded ".dylib"; spec.md §9's open
// question asks for a portable extension while keeping the original's
// search order verbatim, which is what platformSearchPaths below does.
func sharedLibExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// platformSearchPaths reproduces, byte for byte, the original
// implementation's openLib search order: /usr/local/lib, /usr/lib,
// the working directory, then the bare name — only the extension
// varies by platform.
func platformSearchPaths(name string) []string {
	ext := sharedLibExt()
	base := name + ext
	return []string{
		filepath.Join("/usr/local/lib", base),
		filepath.Join("/usr/lib", base),
		"./" + base,
		base,
	}
}

// OpenLibrary walks the search order and returns the first candidate
// that exists and opens with dlopen(RTLD_NOW|RTLD_GLOBAL). A candidate
// whose dlopen fails is skipped; an error is returned only when no
// candidate opens.
func OpenLibrary(name string) (uintptr, error) {
	var lastErr error
	for _, path := range platformSearchPaths(name) {
		if _, statErr := os.Stat(path); statErr != nil {
			if !filepath.IsAbs(path) && path == name+sharedLibExt() {
				// Bare name: let the dynamic linker's own search path
				// try it even though Stat can't see it locally.
			} else {
				lastErr = statErr
				continue
			}
		}
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			log.Debug().Str("library", name).Str("path", path).Err(err).Msg("ffi: dlopen failed, trying next")
			continue
		}
		log.Debug().Str("library", name).Str("path", path).Msg("ffi: library loaded")
		return handle, nil
	}
	return 0, errors.Wrapf(lastErr, "ffi: could not open library %q on any search path", name)
}
