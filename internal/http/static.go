package http

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/itowlson/spin/internal/locked"
)

// StaticExecutor serves files mounted by a component. Lookups never escape
// the mounted directories.
type StaticExecutor struct {
	mounts []staticMount
}

type staticMount struct {
	// dir is the absolute directory on disk.
	dir string
	// dest is the URL prefix the directory is mounted at, always starting
	// and not ending with "/" (except the root mount "/").
	dest string
}

// NewStaticExecutor builds the executor from a locked component's source
// directory and file mounts. The source directory, when present, mounts at
// the root.
func NewStaticExecutor(c *locked.Component) (*StaticExecutor, error) {
	e := &StaticExecutor{}
	if c.Source != nil && c.Source.Path != "" {
		e.mounts = append(e.mounts, staticMount{dir: c.Source.Path, dest: "/"})
	}
	for _, f := range c.Files {
		if f.Source == "" {
			// Glob patterns serve from the pattern's directory.
			e.mounts = append(e.mounts, staticMount{dir: filepath.Dir(f.Pattern), dest: "/"})
			continue
		}
		dest := f.Destination
		if !strings.HasPrefix(dest, "/") {
			dest = "/" + dest
		}
		e.mounts = append(e.mounts, staticMount{dir: f.Source, dest: dest})
	}
	if len(e.mounts) == 0 {
		return nil, fmt.Errorf("component %q has nothing to serve", c.ID)
	}
	return e, nil
}

// Handle serves the file addressed by the request's path info.
func (e *StaticExecutor) Handle(c *fiber.Ctx, host *Host, pathInfo string) error {
	if pathInfo == "" {
		pathInfo = "/"
	}
	for _, m := range e.mounts {
		file, ok := m.resolve(pathInfo)
		if !ok {
			continue
		}
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.IsDir() {
			index := filepath.Join(file, "index.html")
			if _, err := os.Stat(index); err != nil {
				continue
			}
			file = index
		}
		return c.SendFile(file)
	}
	return fiber.ErrNotFound
}

// resolve maps a request path to a file under the mount, rejecting paths
// that would escape the mounted directory.
func (m *staticMount) resolve(pathInfo string) (string, bool) {
	rel := pathInfo
	if m.dest != "/" {
		if pathInfo != m.dest && !strings.HasPrefix(pathInfo, m.dest+"/") {
			return "", false
		}
		rel = strings.TrimPrefix(pathInfo, m.dest)
	}
	rel = strings.TrimPrefix(rel, "/")

	// Clean and confine to the mount directory.
	file := filepath.Join(m.dir, filepath.FromSlash(rel))
	relCheck, err := filepath.Rel(m.dir, file)
	if err != nil || relCheck == ".." || strings.HasPrefix(relCheck, ".."+string(filepath.Separator)) {
		return "", false
	}
	return file, true
}
