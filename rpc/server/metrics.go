package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ValentinKolb/xdb/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

// serverMetrics holds the metrics of one server.
// Every server has its own set, so several servers can run in one process.
type serverMetrics struct {
	set *metrics.Set

	commands     map[common.CommandType]*metrics.Counter
	errors       *metrics.Counter
	accepted     *metrics.Counter
	rejected     *metrics.Counter
	saveErrors   *metrics.Counter
	saveDuration *metrics.Histogram

	httpServer *http.Server
}

var commandTypes = []common.CommandType{
	common.CmdUnknown,
	common.CmdSet,
	common.CmdGet,
	common.CmdDel,
	common.CmdSelectDB,
	common.CmdListDBs,
	common.CmdSave,
	common.CmdSaveAll,
	common.CmdPing,
}

func newServerMetrics(s *Server) *serverMetrics {
	set := metrics.NewSet()

	m := &serverMetrics{
		set:          set,
		commands:     make(map[common.CommandType]*metrics.Counter, len(commandTypes)),
		errors:       set.NewCounter("xdb_command_errors_total"),
		accepted:     set.NewCounter("xdb_connections_accepted_total"),
		rejected:     set.NewCounter("xdb_connections_rejected_total"),
		saveErrors:   set.NewCounter("xdb_save_errors_total"),
		saveDuration: set.NewHistogram("xdb_save_duration_seconds"),
	}

	for _, cmd := range commandTypes {
		m.commands[cmd] = set.NewCounter(fmt.Sprintf(`xdb_commands_total{command=%q}`, cmd.String()))
	}

	set.NewGauge("xdb_clients", func() float64 {
		return float64(s.clients.Value())
	})
	set.NewGauge("xdb_databases", func() float64 {
		return float64(len(s.snapshot()))
	})
	set.NewGauge("xdb_entries", func() float64 {
		total := 0
		for _, database := range s.snapshot() {
			if info, err := database.GetDBInfo(); err == nil {
				total += info.Entries
			}
		}
		return float64(total)
	})

	return m
}

// command returns the counter of a command type
func (m *serverMetrics) command(cmd common.CommandType) *metrics.Counter {
	if counter, ok := m.commands[cmd]; ok {
		return counter
	}
	return m.commands[common.CmdUnknown]
}

// serve exposes the metrics in the Prometheus text format on endpoint + "/metrics"
func (m *serverMetrics) serve(endpoint string) error {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		m.set.WritePrometheus(w)
		metrics.WriteProcessMetrics(w)
	})

	m.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	Logger.Infof("Serving metrics on http://%s/metrics", listener.Addr())

	go func() {
		if err := m.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics endpoint failed: %v", err)
		}
	}()
	return nil
}

// shutdown stops the metrics endpoint if it is running
func (m *serverMetrics) shutdown() {
	if m.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.httpServer.Shutdown(ctx); err != nil {
		Logger.Warningf("Failed to stop metrics endpoint: %v", err)
	}
}

// WriteMetrics writes the metrics of the server in the Prometheus text format
func (s *Server) WriteMetrics(w io.Writer) {
	s.metrics.set.WritePrometheus(w)
}
