package runtimeconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/itowlson/spin/internal/blobstore"
	"github.com/itowlson/spin/internal/config"
	"github.com/itowlson/spin/internal/kv"
	"github.com/itowlson/spin/internal/sqlite"
)

// FileName is the well-known runtime config file name, looked up next to
// the application manifest.
const FileName = "runtime-config.toml"

// File is the parsed runtime configuration. It maps store, database, and
// container labels to backend choices. Credentials come from the
// environment (config.RuntimeConfig), never from this file.
type File struct {
	KeyValueStores  map[string]StoreConfig    `toml:"key_value_store"`
	SqliteDatabases map[string]DatabaseConfig `toml:"sqlite_database"`
	BlobStores      map[string]BlobConfig     `toml:"blob_store"`
}

// StoreConfig selects a key-value backend for one label.
type StoreConfig struct {
	// Type is one of "memory", "sqlite", "redis", "postgres".
	Type string `toml:"type"`
	// Path backs a sqlite store; relative paths resolve against the
	// state directory.
	Path string `toml:"path"`
	// URL backs a redis store; empty falls back to SPIN_REDIS_URL.
	URL string `toml:"url"`
}

// DatabaseConfig selects a sqlite database file for one label.
type DatabaseConfig struct {
	// Type must be "sqlite" (or empty).
	Type string `toml:"type"`
	// Path of the database file; relative paths resolve against the
	// state directory. Empty uses <stateDir>/sqlite/<label>.db.
	Path string `toml:"path"`
}

// BlobConfig selects a blob container backend for one label.
type BlobConfig struct {
	// Type is one of "memory", "s3".
	Type string `toml:"type"`
}

// Load reads the runtime config file at path. A missing file is not an
// error: it yields an empty config, which Build fills with defaults.
func Load(path string) (*File, error) {
	var f File
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("parse runtime config %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in runtime config %q", undecoded[0].String(), path)
	}
	return &f, nil
}

// Factors are the label-addressed backends handed to the trigger.
type Factors struct {
	KeyValue *kv.DelegatingStoreManager
	Sqlite   map[string]sqlite.ConnectionCreator
	Blob     map[string]blobstore.ContainerManager
}

// Build constructs backends for every configured label and fills in
// state-directory defaults for the "default" key-value store and sqlite
// database when the config does not mention them.
func Build(f *File, cfg *config.RuntimeConfig, stateDir string) (*Factors, error) {
	stores := make(map[string]kv.StoreManager, len(f.KeyValueStores)+1)
	for label, sc := range f.KeyValueStores {
		mgr, err := buildStore(label, sc, cfg, stateDir)
		if err != nil {
			return nil, err
		}
		stores[label] = mgr
	}
	if _, ok := stores["default"]; !ok {
		stores["default"] = kv.NewSqliteStoreManager(filepath.Join(stateDir, "sqlite_key_value.db"))
	}

	creators := make(map[string]sqlite.ConnectionCreator, len(f.SqliteDatabases)+1)
	for label, dc := range f.SqliteDatabases {
		creator, err := buildDatabase(label, dc, stateDir)
		if err != nil {
			return nil, err
		}
		creators[label] = creator
	}
	if _, ok := creators["default"]; !ok {
		creators["default"] = sqlite.NewInProcCreator(filepath.Join(stateDir, "sqlite", "default.db"))
	}

	containers := make(map[string]blobstore.ContainerManager, len(f.BlobStores))
	for label, bc := range f.BlobStores {
		mgr, err := buildBlobStore(label, bc, cfg)
		if err != nil {
			return nil, err
		}
		containers[label] = mgr
	}

	return &Factors{
		KeyValue: kv.NewDelegatingStoreManager(stores),
		Sqlite:   creators,
		Blob:     containers,
	}, nil
}

func buildStore(label string, sc StoreConfig, cfg *config.RuntimeConfig, stateDir string) (kv.StoreManager, error) {
	switch sc.Type {
	case "memory":
		return kv.NewMemoryStoreManager(), nil
	case "sqlite", "":
		path := sc.Path
		if path == "" {
			path = fmt.Sprintf("%s_key_value.db", label)
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(stateDir, path)
		}
		return kv.NewSqliteStoreManager(path), nil
	case "redis":
		u := sc.URL
		if u == "" {
			u = cfg.Redis.URL
		}
		if u == "" {
			return nil, fmt.Errorf("key_value_store %q: redis requires url or SPIN_REDIS_URL", label)
		}
		return kv.NewRedisStoreManager(u)
	case "postgres":
		return kv.NewPostgresStoreManager(cfg.Postgres), nil
	default:
		return nil, fmt.Errorf("key_value_store %q: unknown type %q", label, sc.Type)
	}
}

func buildDatabase(label string, dc DatabaseConfig, stateDir string) (sqlite.ConnectionCreator, error) {
	if dc.Type != "" && dc.Type != "sqlite" {
		return nil, fmt.Errorf("sqlite_database %q: unknown type %q", label, dc.Type)
	}
	path := dc.Path
	if path == "" {
		path = filepath.Join("sqlite", label+".db")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(stateDir, path)
	}
	return sqlite.NewInProcCreator(path), nil
}

func buildBlobStore(label string, bc BlobConfig, cfg *config.RuntimeConfig) (blobstore.ContainerManager, error) {
	switch bc.Type {
	case "memory", "":
		return blobstore.NewMemoryManager(), nil
	case "s3":
		mgr, err := blobstore.NewS3Manager(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("blob_store %q: %w", label, err)
		}
		return mgr, nil
	default:
		return nil, fmt.Errorf("blob_store %q: unknown type %q", label, bc.Type)
	}
}
