package repomanager

import (
	"context"
	"database/sql"

	"github.com/obsync-io/obsync/internal/dbx"
	"github.com/obsync-io/obsync/internal/server/repositories/blobs"
	"github.com/obsync-io/obsync/internal/server/repositories/cursors"
	"github.com/obsync-io/obsync/internal/server/repositories/devices"
	"github.com/obsync-io/obsync/internal/server/repositories/keyenvelopes"
	"github.com/obsync-io/obsync/internal/server/repositories/oplog"
	"github.com/obsync-io/obsync/internal/server/repositories/vaults"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same repository code on the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Vaults(db dbx.DBTX) vaults.Repository
	Devices(db dbx.DBTX) devices.Repository
	Ops(db dbx.DBTX) oplog.Repository
	Cursors(db dbx.DBTX) cursors.Repository
	Blobs(db dbx.DBTX) blobs.Repository
	KeyEnvelopes(db dbx.DBTX) keyenvelopes.Repository
}
