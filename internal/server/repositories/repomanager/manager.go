// Package repomanager vends repositories bound to either a plain connection
// or a transaction, and owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/consejo/internal/dbx"
	"github.com/dmitrijs2005/consejo/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/consejo/internal/server/repositories/units"
	"github.com/dmitrijs2005/consejo/internal/server/repositories/users"
)

// RepositoryManager hands out repositories over any dbx.DBTX, so the same
// code path works inside and outside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Units(db dbx.DBTX) units.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
