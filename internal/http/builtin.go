package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/itowlson/spin/internal/blobstore"
	"github.com/itowlson/spin/internal/kv"
	"github.com/itowlson/spin/internal/sqlite"
)

// BuiltinHandler is a native request handler wired to a component's host
// services. Components select one by name via the manifest's handler key.
type BuiltinHandler func(c *fiber.Ctx, host *Host, pathInfo string) error

var builtins = map[string]BuiltinHandler{
	"key-value": keyValueHandler,
	"sqlite":    sqliteHandler,
	"blobstore": blobHandler,
}

// LookupBuiltin resolves a handler name.
func LookupBuiltin(name string) (BuiltinHandler, bool) {
	h, ok := builtins[name]
	return h, ok
}

// splitPathInfo splits "/a/b/c" into ("a", "b/c"). The second segment may
// contain slashes so blob keys can be hierarchical.
func splitPathInfo(pathInfo string) (first, rest string) {
	trimmed := strings.TrimPrefix(pathInfo, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	first = parts[0]
	if len(parts) == 2 {
		rest = parts[1]
	}
	return first, rest
}

func hostError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, kv.ErrAccessDenied),
		errors.Is(err, sqlite.ErrAccessDenied),
		errors.Is(err, blobstore.ErrAccessDenied):
		return fiber.ErrForbidden
	case errors.Is(err, kv.ErrNoSuchStore),
		errors.Is(err, sqlite.ErrNoSuchDatabase),
		errors.Is(err, blobstore.ErrNoSuchContainer),
		errors.Is(err, blobstore.ErrNoSuchObject):
		return fiber.ErrNotFound
	default:
		return fmt.Errorf("host operation: %w", err)
	}
}

// keyValueHandler exposes the component's key-value stores:
//
//	GET    /{store}        list keys
//	GET    /{store}/{key}  read value
//	PUT    /{store}/{key}  write value (request body)
//	DELETE /{store}/{key}  delete
//	HEAD   /{store}/{key}  existence check
func keyValueHandler(c *fiber.Ctx, host *Host, pathInfo string) error {
	label, key := splitPathInfo(pathInfo)
	if label == "" {
		return fiber.ErrNotFound
	}
	ctx := c.UserContext()

	store, err := host.KV.Open(ctx, label)
	if err != nil {
		return hostError(c, err)
	}

	if key == "" {
		if c.Method() != fiber.MethodGet {
			return fiber.ErrMethodNotAllowed
		}
		keys, err := store.GetKeys(ctx)
		if err != nil {
			return hostError(c, err)
		}
		return c.JSON(fiber.Map{"keys": keys})
	}

	switch c.Method() {
	case fiber.MethodGet:
		value, ok, err := store.Get(ctx, key)
		if err != nil {
			return hostError(c, err)
		}
		if !ok {
			return fiber.ErrNotFound
		}
		return c.Send(value)
	case fiber.MethodPut:
		if err := store.Set(ctx, key, c.Body()); err != nil {
			return hostError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	case fiber.MethodDelete:
		if err := store.Delete(ctx, key); err != nil {
			return hostError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	case fiber.MethodHead:
		ok, err := store.Exists(ctx, key)
		if err != nil {
			return hostError(c, err)
		}
		if !ok {
			return fiber.ErrNotFound
		}
		return c.SendStatus(fiber.StatusOK)
	default:
		return fiber.ErrMethodNotAllowed
	}
}

type sqliteRequest struct {
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

// sqliteHandler exposes the component's databases:
//
//	POST /{database}/query    run a query, returns columns and rows
//	POST /{database}/execute  run a statement, returns rows_affected
func sqliteHandler(c *fiber.Ctx, host *Host, pathInfo string) error {
	label, op := splitPathInfo(pathInfo)
	if label == "" || (op != "query" && op != "execute") {
		return fiber.ErrNotFound
	}
	if c.Method() != fiber.MethodPost {
		return fiber.ErrMethodNotAllowed
	}
	ctx := c.UserContext()

	var req sqliteRequest
	if err := c.BodyParser(&req); err != nil || req.Query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query is required")
	}

	conn, err := host.Sqlite.Open(ctx, label)
	if err != nil {
		return hostError(c, err)
	}

	if op == "execute" {
		affected, err := conn.Execute(ctx, req.Query, req.Params)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "statement failed")
		}
		return c.JSON(fiber.Map{"rows_affected": affected})
	}

	result, err := conn.Query(ctx, req.Query, req.Params)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "query failed")
	}
	return c.JSON(result)
}

// blobHandler exposes the component's blob containers:
//
//	GET    /{container}        list keys (optional ?prefix=)
//	GET    /{container}/{key}  download
//	PUT    /{container}/{key}  upload (request body)
//	DELETE /{container}/{key}  delete
//	HEAD   /{container}/{key}  existence check
func blobHandler(c *fiber.Ctx, host *Host, pathInfo string) error {
	label, key := splitPathInfo(pathInfo)
	if label == "" {
		return fiber.ErrNotFound
	}
	ctx := c.UserContext()

	container, err := host.Blob.Open(ctx, label)
	if err != nil {
		return hostError(c, err)
	}

	if key == "" {
		if c.Method() != fiber.MethodGet {
			return fiber.ErrMethodNotAllowed
		}
		keys, err := container.List(ctx, c.Query("prefix"))
		if err != nil {
			return hostError(c, err)
		}
		return c.JSON(fiber.Map{"keys": keys})
	}

	switch c.Method() {
	case fiber.MethodGet:
		r, info, err := container.Get(ctx, key)
		if err != nil {
			return hostError(c, err)
		}
		defer r.Close()
		if info.ContentType != "" {
			c.Set(fiber.HeaderContentType, info.ContentType)
		}
		if info.ETag != "" {
			c.Set(fiber.HeaderETag, info.ETag)
		}
		_, err = io.Copy(c.Response().BodyWriter(), r)
		return err
	case fiber.MethodPut:
		body := c.Body()
		info, err := container.Put(ctx, key, bytes.NewReader(body), blobstore.PutOptions{
			Size:        int64(len(body)),
			ContentType: c.Get(fiber.HeaderContentType),
		})
		if err != nil {
			return hostError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"key": info.Key, "etag": info.ETag, "size": info.Size})
	case fiber.MethodDelete:
		if err := container.Delete(ctx, key); err != nil {
			return hostError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	case fiber.MethodHead:
		ok, err := container.Exists(ctx, key)
		if err != nil {
			return hostError(c, err)
		}
		if !ok {
			return fiber.ErrNotFound
		}
		return c.SendStatus(fiber.StatusOK)
	default:
		return fiber.ErrMethodNotAllowed
	}
}
