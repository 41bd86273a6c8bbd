package server

import (
	"strconv"

	"github.com/ValentinKolb/xdb/lib/store"
	"github.com/ValentinKolb/xdb/rpc/common"
)

func NewIStoreServerAdapter() IServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(cmd common.Command, store store.IStore, buf []byte) []byte {
	if store == nil {
		return common.AppendError(buf, common.MsgInvalidDB)
	}

	switch cmd.Type {
	case common.CmdSet:
		if len(cmd.Args) < 2 {
			return common.AppendError(buf, common.MsgInvalidSyntax)
		}

		var ttl int64
		if ttlArg, ok := cmd.Arg(2); ok {
			parsed, err := strconv.ParseInt(ttlArg, 10, 64)
			if err != nil {
				return common.AppendError(buf, common.MsgInvalidSyntax)
			}
			ttl = parsed
		}

		if err := store.Set(cmd.Args[0], cmd.Args[1], ttl); err != nil {
			Logger.Debugf("SET in database %s failed: %v", store.Name(), err)
			return common.AppendError(buf, common.MsgSetFailed)
		}
		return common.AppendSimple(buf, common.MsgOK)

	case common.CmdGet:
		key, ok := cmd.Arg(0)
		if !ok {
			return common.AppendError(buf, common.MsgInvalidSyntax)
		}

		value, found, err := store.Get(key)
		if err != nil {
			Logger.Debugf("GET in database %s failed: %v", store.Name(), err)
			return common.AppendError(buf, common.MsgInvalidDB)
		}
		if !found {
			return common.AppendNullBulk(buf)
		}
		return common.AppendBulk(buf, value)

	case common.CmdDel:
		key, ok := cmd.Arg(0)
		if !ok {
			return common.AppendError(buf, common.MsgInvalidSyntax)
		}

		deleted, err := store.Delete(key)
		if err != nil {
			Logger.Debugf("DEL in database %s failed: %v", store.Name(), err)
			return common.AppendError(buf, common.MsgInvalidDB)
		}
		if deleted {
			return common.AppendInteger(buf, 1)
		}
		return common.AppendInteger(buf, 0)

	default:
		return common.AppendError(buf, common.MsgUnknownCmd)
	}
}
