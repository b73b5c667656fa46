package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/rs/zerolog"

	"github.com/wiz21b/montgomery"
	"github.com/wiz21b/montgomery/schema"
)

var rules = inflect.NewDefaultRuleset()

type identityKey struct {
	entity string
	key    string
}

type tracked struct {
	entity  *schema.EntityType
	adapter montgomery.Adapter
	inst    any
}

// A Session is the unit of work of the sqlstore representation. It
// keeps an identity map so every (entity type, business key) pair maps
// to a single instance within the session, and it remembers every
// instance that passed through it so Flush can write them out in one
// transaction. A Session is not safe for concurrent use.
type Session struct {
	db       *sql.DB
	log      zerolog.Logger
	identity map[identityKey]any
	tracked  []tracked
	seen     map[any]bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger the session reports flushes to.
func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// NewSession returns an empty session writing through db.
func NewSession(db *sql.DB, opts ...SessionOption) *Session {
	s := &Session{
		db:       db,
		log:      zerolog.Nop(),
		identity: make(map[identityKey]any),
		seen:     make(map[any]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the session instance registered under the entity type
// and canonical key.
func (s *Session) Get(entity *schema.EntityType, key string) (any, bool) {
	inst, ok := s.identity[identityKey{entity.Name(), key}]
	return inst, ok
}

// Add registers inst under the entity type and canonical key and
// tracks it for the next Flush.
func (s *Session) Add(entity *schema.EntityType, key string, adapter montgomery.Adapter, inst any) {
	s.identity[identityKey{entity.Name(), key}] = inst
	s.track(entity, adapter, inst)
}

// track remembers inst for Flush without an identity entry. Instances
// whose business key is still unset take this path.
func (s *Session) track(entity *schema.EntityType, adapter montgomery.Adapter, inst any) {
	if s.seen[inst] {
		return
	}
	s.seen[inst] = true
	s.tracked = append(s.tracked, tracked{entity: entity, adapter: adapter, inst: inst})
}

// Flush writes every tracked instance as an INSERT OR REPLACE against
// its table, in tracking order and within a single transaction. The
// session stays usable afterwards; flushing twice writes the rows
// twice.
func (s *Session) Flush(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: opening flush transaction: %w", err)
	}
	for _, t := range s.tracked {
		query, fields := upsertQuery(t.entity)
		args := make([]any, 0, len(fields))
		for _, f := range fields {
			v, err := t.adapter.ReadField(t.inst, f.Name)
			if err != nil {
				tx.Rollback()
				return err
			}
			base, err := t.adapter.ToBase(f, v)
			if err != nil {
				tx.Rollback()
				return err
			}
			args = append(args, base)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlstore: flushing %s: %w", t.entity.Name(), err)
		}
		s.log.Debug().Str("entity", t.entity.Name()).Msg("flushed instance")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: committing flush: %w", err)
	}
	s.log.Info().Int("instances", len(s.tracked)).Msg("session flushed")
	return nil
}

// TableName returns the table an entity type persists to.
func TableName(t *schema.EntityType) string {
	return rules.Pluralize(t.Label())
}

func upsertQuery(t *schema.EntityType) (string, []schema.Field) {
	fields := append(t.KeyFields(), t.Fields()...)
	cols := make([]string, len(fields))
	marks := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = rules.Underscore(f.Name)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		TableName(t), strings.Join(cols, ", "), strings.Join(marks, ", ")), fields
}
