package server

import (
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/ValentinKolb/xdb/rpc/common"
	"github.com/ValentinKolb/xdb/rpc/transport/base"
)

// session is the state of one client connection
type session struct {
	server  *Server
	conn    net.Conn
	reader  *base.LineReader
	current int // index of the selected database
	buf     []byte
}

// handle serves one connection until the client disconnects, a read or write
// fails or the server is stopped. Commands are executed one at a time, the
// reply of a command is written before the next line is read.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	sess := &session{
		server: s,
		conn:   conn,
		reader: base.NewLineReader(conn, common.MaxLineSize),
		buf:    make([]byte, 0, 512),
	}

	remote := conn.RemoteAddr()
	Logger.Debugf("Client %s connected", remote)

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	for {
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set read deadline: %v", err)
				return
			}
		}

		line, err := sess.reader.ReadLine()

		var reply []byte
		switch {
		case errors.Is(err, base.ErrLineTooLong):
			s.metrics.errors.Inc()
			reply = common.AppendError(sess.buf[:0], common.MsgLineTooLong)
		case err == io.EOF:
			Logger.Debugf("Client %s disconnected", remote)
			return
		case err != nil:
			Logger.Debugf("Closing connection to %s: %v", remote, err)
			return
		default:
			cmd, ok := common.ParseCommand(line)
			if !ok {
				// blank lines get no reply
				continue
			}
			reply = sess.execute(cmd)
		}

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}
		if _, err := conn.Write(reply); err != nil {
			Logger.Debugf("Failed to write reply to %s: %v", remote, err)
			return
		}
		sess.buf = reply

		if s.stopped.Load() {
			Logger.Debugf("Closing connection to %s: server stopped", remote)
			return
		}
	}
}

// execute runs one command and returns its reply
func (sess *session) execute(cmd common.Command) []byte {
	s := sess.server
	buf := sess.buf[:0]

	s.metrics.command(cmd.Type).Inc()

	var reply []byte
	switch cmd.Type {
	case common.CmdSet, common.CmdGet, common.CmdDel:
		database, ok := s.Database(sess.current)
		if !ok {
			reply = common.AppendError(buf, common.MsgInvalidDB)
			break
		}
		reply = s.adapter.Handle(cmd, database, buf)

	case common.CmdSelectDB:
		reply = sess.selectDB(cmd, buf)

	case common.CmdListDBs:
		databases := s.Databases()
		reply = common.AppendArrayHeader(buf, len(databases))
		for _, database := range databases {
			reply = common.AppendBulk(reply, common.FormatDatabase(database.Index, database.Name))
		}

	case common.CmdSave:
		if err := s.SaveDatabase(sess.current); err != nil {
			if errors.Is(err, ErrInvalidDatabase) {
				reply = common.AppendError(buf, common.MsgInvalidDB)
			} else {
				reply = common.AppendError(buf, common.MsgSaveFailed)
			}
			break
		}
		reply = common.AppendSimple(buf, common.MsgOK)

	case common.CmdSaveAll:
		if err := s.SaveAll(); err != nil {
			reply = common.AppendError(buf, common.MsgSaveAllFailed)
			break
		}
		reply = common.AppendSimple(buf, common.MsgAllSaved)

	case common.CmdPing:
		reply = common.AppendSimple(buf, common.MsgPong)

	default:
		reply = common.AppendError(buf, common.MsgUnknownCmd)
	}

	if len(reply) > 0 && reply[0] == common.ReplyError {
		s.metrics.errors.Inc()
	}
	return reply
}

// selectDB switches the database of the session. The selection is kept on failure.
func (sess *session) selectDB(cmd common.Command, buf []byte) []byte {
	arg, ok := cmd.Arg(0)
	if !ok {
		return common.AppendError(buf, common.MsgInvalidSyntax)
	}

	index, err := strconv.Atoi(arg)
	if err != nil {
		return common.AppendError(buf, common.MsgInvalidIndex)
	}

	database, ok := sess.server.Database(index)
	if !ok {
		return common.AppendError(buf, common.MsgInvalidIndex)
	}

	sess.current = index
	return common.AppendSimple(buf, "OK switched to DB "+strconv.Itoa(index)+" ("+database.Name()+")")
}
