// Package repository persists analysis results so they can be fetched again
// by id.
//
// The Repository interface abstracts storage operations, allowing different
// implementations for different environments:
//   - memory: development and tests
//   - sqlite: a single-node history on disk
//   - redis: shared, expiring results behind several API replicas
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/humanmark/forensics/internal/config"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Record is one stored analysis.
type Record struct {
	// ID is the public identifier, a uuid assigned by Save.
	ID string `json:"id"`

	// ContentHash is the hex sha256 of the analyzed bytes.
	ContentHash string `json:"contentHash"`

	ContentType string `json:"contentType"`
	Verdict     string `json:"verdict"`
	AIScore     int    `json:"aiScore"`
	Confidence  int    `json:"confidence"`

	// Result is the serialized AnalysisResult.
	Result json.RawMessage `json:"result"`

	CreatedAt time.Time `json:"createdAt"`
}

// Repository defines the interface for result persistence.
type Repository interface {
	// Save stores rec and returns it with ID and CreatedAt filled in.
	Save(ctx context.Context, rec Record) (*Record, error)

	// Get retrieves a record by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Open builds the repository selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Repository, error) {
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemory(), nil
	case config.BackendSQLite:
		return NewSQLite(cfg.SQLitePath)
	case config.BackendRedis:
		return NewRedis(ctx, cfg.RedisURL, ttl)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// stamp assigns the identity fields every backend fills in on Save.
func stamp(rec *Record) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()
}

// memoryRepository implements Repository using in-memory storage.
type memoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemory creates a new in-memory repository.
func NewMemory() Repository {
	return &memoryRepository{
		records: make(map[string]*Record),
	}
}

func (r *memoryRepository) Save(ctx context.Context, rec Record) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stamp(&rec)
	stored := rec
	stored.Result = append(json.RawMessage(nil), rec.Result...)
	r.records[rec.ID] = &stored

	return &rec, nil
}

func (r *memoryRepository) Get(ctx context.Context, id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rec, ok := r.records[id]; ok {
		out := *rec
		out.Result = append(json.RawMessage(nil), rec.Result...)
		return &out, nil
	}

	return nil, ErrNotFound
}

// Ping always succeeds for in-memory repository.
func (r *memoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory repository.
func (r *memoryRepository) Close() error {
	return nil
}
