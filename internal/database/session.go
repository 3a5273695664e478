package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// Session is a GORM handle pinned to a single pooled connection. Every statement issued
// through DB runs on that connection until Release returns it to the pool.
type Session struct {
	DB *gorm.DB

	conn *sql.Conn
	once sync.Once
	err  error
}

// Acquire checks one connection out of db's pool and binds a fresh GORM session to it.
func Acquire(ctx context.Context, db *gorm.DB) (*Session, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	tx := db.Session(&gorm.Session{NewDB: true, Context: ctx})
	tx.Statement.ConnPool = conn

	return &Session{DB: tx, conn: conn}, nil
}

// Release returns the connection to the pool. It is safe to call more than once.
func (s *Session) Release() error {
	s.once.Do(func() {
		s.err = s.conn.Close()
	})
	return s.err
}

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored in ctx, if any.
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// Conn returns the request's session handle when ctx carries one, and fallback otherwise.
// The result is always bound to ctx.
func Conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if s, ok := SessionFrom(ctx); ok {
		return s.DB.WithContext(ctx)
	}
	return fallback.WithContext(ctx)
}
