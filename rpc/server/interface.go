package server

import (
	"github.com/ValentinKolb/xdb/lib/store"
	"github.com/ValentinKolb/xdb/rpc/common"
)

// IServerAdapter executes the commands that operate on a single database.
// Commands that concern the connection or the server (SELECTDB, LISTDBS,
// SAVE, SAVEALL, PING) are handled by the connection handler itself.
type IServerAdapter interface {
	// Handle executes cmd against store and appends the reply to buf.
	// Errors never leave the adapter, they are encoded as "-ERR" replies.
	Handle(cmd common.Command, store store.IStore, buf []byte) []byte
}
