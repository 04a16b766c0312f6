// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package dining

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	cerror "github.com/pingcap/dinesim/pkg/errors"
	"github.com/pingcap/dinesim/pkg/version"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const statusShutdownTimeout = 2 * time.Second

func (c *Coordinator) startStatusHTTP() error {
	serverMux := http.NewServeMux()

	serverMux.HandleFunc("/debug/pprof/", pprof.Index)
	serverMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	serverMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	serverMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	serverMux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	serverMux.HandleFunc("/status", c.handleStatus)
	serverMux.HandleFunc("/table", c.handleTable)
	serverMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	lis, err := net.Listen("tcp", c.cfg.Addr)
	if err != nil {
		return cerror.WrapError(cerror.ErrStatusServerFailed, err)
	}
	c.statusMu.Lock()
	c.statusLis = lis
	c.statusServer = &http.Server{Handler: serverMux}
	c.statusMu.Unlock()
	log.Info("status http server is running", zap.String("addr", lis.Addr().String()))
	go func() {
		err := c.statusServer.Serve(lis)
		if err != nil && err != http.ErrServerClosed {
			log.Error("status server error", zap.Error(err))
		}
	}()
	return nil
}

func (c *Coordinator) stopStatusHTTP() error {
	c.statusMu.Lock()
	server := c.statusServer
	c.statusMu.Unlock()
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return cerror.WrapError(cerror.ErrStatusServerFailed, err)
	}
	return nil
}

// StatusAddr returns the bound address of the status server, empty when it
// is disabled. Useful when the configured address picks a free port.
func (c *Coordinator) StatusAddr() string {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	if c.statusLis == nil {
		return ""
	}
	return c.statusLis.Addr().String()
}

// status of the simulation process.
type status struct {
	Version string `json:"version"`
	GitHash string `json:"git_hash"`
	ID      string `json:"id"`
	Pid     int    `json:"pid"`
	Seats   int    `json:"seats"`
	Uptime  string `json:"uptime"`
}

func (c *Coordinator) handleStatus(w http.ResponseWriter, req *http.Request) {
	st := status{
		Version: version.ReleaseVersion,
		GitHash: version.GitHash,
		ID:      c.id,
		Pid:     os.Getpid(),
		Seats:   c.cfg.Seats,
		Uptime:  time.Since(c.startedAt).Round(time.Millisecond).String(),
	}
	writeData(w, st)
}

func (c *Coordinator) handleTable(w http.ResponseWriter, req *http.Request) {
	writeData(w, c.table.Snapshot())
}

func writeInternalServerError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, err)
}

func writeError(w http.ResponseWriter, statusCode int, err error) {
	w.WriteHeader(statusCode)
	_, err = w.Write([]byte(err.Error()))
	if err != nil {
		log.Error("write error", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, data interface{}) {
	js, err := json.MarshalIndent(data, "", " ")
	if err != nil {
		log.Error("invalid json data", zap.Reflect("data", data), zap.Error(err))
		writeInternalServerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(js)
	if err != nil {
		log.Error("write data", zap.Error(err))
	}
}
