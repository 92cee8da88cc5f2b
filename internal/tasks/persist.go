package tasks

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/valkey-io/valkey-go"
)

// StorageType selects the snapshot backend.
type StorageType string

const (
	// StorageTypeMemory keeps tasks in memory only.
	StorageTypeMemory StorageType = "memory"

	// StorageTypeValkey saves a snapshot to Valkey after every mutation.
	// Processes pointed at the same key share their goals.
	StorageTypeValkey StorageType = "valkey"

	// StorageTypeSQLite saves a snapshot to a local SQLite file after
	// every mutation.
	StorageTypeSQLite StorageType = "sqlite"
)

// DefaultKeyPrefix is the default prefix for Valkey keys.
const DefaultKeyPrefix = "goaltiers:"

// snapshotKey is appended to the key prefix.
const snapshotKey = "tasks"

// Snapshot is a persisted tier mapping and the version it was saved as.
// Versions start at 1 and grow by one with every save.
type Snapshot struct {
	Tiers   Tiers
	Version int64
}

// Persister saves and restores the full tier mapping. Several processes
// may share one backend: Save only succeeds against the version the
// caller last loaded.
type Persister interface {
	// Load returns the latest snapshot. Tiers is nil and Version 0 when
	// nothing has been saved.
	Load(ctx context.Context) (Snapshot, error)

	// Save stores tiers if the stored version still equals version and
	// returns the new version. Otherwise it returns ErrSnapshotConflict.
	Save(ctx context.Context, tiers Tiers, version int64) (int64, error)
}

// ValkeyConfig holds the connection settings for ValkeyPersister.
type ValkeyConfig struct {
	// URL is the server address, e.g. "valkey.namespace.svc:6379".
	URL string

	// Password is optional.
	Password string

	// TLSEnabled turns on TLS for the connection.
	TLSEnabled bool

	// TLSCAFile is a PEM bundle used to verify servers signed by a private CA.
	TLSCAFile string

	// KeyPrefix is prepended to every key (default: "goaltiers:").
	KeyPrefix string

	// DB is the database number.
	DB int
}

// saveScript replaces the snapshot hash only when its version field
// matches ARGV[1]. It returns the new version, or -1 on a mismatch.
var saveScript = valkey.NewLuaScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
if current ~= tonumber(ARGV[1]) then
	return -1
end
redis.call('HSET', KEYS[1], 'data', ARGV[2], 'version', current + 1)
return current + 1
`)

// ValkeyPersister stores the tier mapping as a hash with a JSON data
// field and a version field.
type ValkeyPersister struct {
	client valkey.Client
	key    string
}

// NewValkeyPersister connects to Valkey with the given configuration.
func NewValkeyPersister(cfg ValkeyConfig) (*ValkeyPersister, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("valkey URL is required for %s task storage", StorageTypeValkey)
	}

	opt := valkey.ClientOption{
		InitAddress: []string{cfg.URL},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	}

	if cfg.TLSEnabled {
		tlsConfig, err := buildTLSConfig(cfg.TLSCAFile)
		if err != nil {
			return nil, err
		}
		opt.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", cfg.URL, err)
	}

	return &ValkeyPersister{
		client: client,
		key:    snapshotKeyFor(cfg.KeyPrefix),
	}, nil
}

func snapshotKeyFor(prefix string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + snapshotKey
}

func buildTLSConfig(caFile string) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return tlsConfig, nil
	}

	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read valkey CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in valkey CA file %s", caFile)
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

// Load implements Persister.
func (p *ValkeyPersister) Load(ctx context.Context) (Snapshot, error) {
	fields, err := p.client.Do(ctx, p.client.B().Hgetall().Key(p.key).Build()).AsStrMap()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read %s: %w", p.key, err)
	}
	if len(fields) == 0 {
		return Snapshot{}, nil
	}

	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read %s: bad version %q", p.key, fields["version"])
	}
	tiers, err := decodeSnapshot([]byte(fields["data"]))
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Tiers: tiers, Version: version}, nil
}

// Save implements Persister.
func (p *ValkeyPersister) Save(ctx context.Context, tiers Tiers, version int64) (int64, error) {
	data, err := encodeSnapshot(tiers)
	if err != nil {
		return 0, err
	}
	next, err := saveScript.Exec(ctx, p.client, []string{p.key},
		[]string{strconv.FormatInt(version, 10), string(data)}).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", p.key, err)
	}
	if next < 0 {
		return 0, fmt.Errorf("%w: %s is past version %d", ErrSnapshotConflict, p.key, version)
	}
	return next, nil
}

// Ping checks that the server answers.
func (p *ValkeyPersister) Ping(ctx context.Context) error {
	if err := p.client.Do(ctx, p.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("valkey ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (p *ValkeyPersister) Close() {
	p.client.Close()
}

func encodeSnapshot(tiers Tiers) ([]byte, error) {
	data, err := json.Marshal(tiers.clone())
	if err != nil {
		return nil, fmt.Errorf("failed to encode task snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (Tiers, error) {
	var tiers Tiers
	if err := json.Unmarshal(data, &tiers); err != nil {
		return nil, fmt.Errorf("failed to decode task snapshot: %w", err)
	}
	return tiers, nil
}
