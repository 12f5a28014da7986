// Package repomanager vends repository implementations bound to a DBTX and
// exposes the schema migration hook. Services hold a RepositoryManager so
// the same repository code runs against *sql.DB or an open transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dkurganov/taskflow/internal/dbx"
	"github.com/dkurganov/taskflow/internal/server/repositories/messages"
	"github.com/dkurganov/taskflow/internal/server/repositories/notifications"
	"github.com/dkurganov/taskflow/internal/server/repositories/refreshtokens"
	"github.com/dkurganov/taskflow/internal/server/repositories/tasks"
	"github.com/dkurganov/taskflow/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Tasks(db dbx.DBTX) tasks.Repository
	Notifications(db dbx.DBTX) notifications.Repository
	Messages(db dbx.DBTX) messages.Repository
}
