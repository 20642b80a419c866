package cmn

import (
	"fmt"
	"os"
	"path"
	"strings"
)

// ParserIterateOverSource walks sourcePath (a file or a directory tree)
// and calls cb with the content of every file ending in one of suffixes.
// No suffixes means every file.
func ParserIterateOverSource(
	sourcePath string,
	suffixes []string,
	cb func(path string, fc []byte, args interface{}) error,
	args interface{}) error {

	var err error
	var fi os.FileInfo
	var di []os.DirEntry
	var fc []byte

	if fi, err = os.Stat(sourcePath); err != nil {
		return err
	}

	if fi.IsDir() {
		if di, err = os.ReadDir(sourcePath); err != nil {
			return err
		}
		for _, e := range di {
			p := path.Join(sourcePath, e.Name())
			if !e.IsDir() && !HasSuffix(p, suffixes) {
				continue
			}
			if err = ParserIterateOverSource(p, suffixes, cb, args); err != nil {
				return err
			}
		}
		return err
	}

	if fc, err = os.ReadFile(sourcePath); err != nil {
		return err
	}
	if len(fc) == 0 {
		return fmt.Errorf("%s - empty file content", sourcePath)
	}
	return cb(sourcePath, fc, args)
}

func HasSuffix(p string, suffixes []string) bool {
	if len(suffixes) == 0 {
		return true
	}
	for _, s := range suffixes {
		if strings.HasSuffix(p, s) {
			return true
		}
	}
	return false
}
