package actions

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/dentametrics/pmsync/config"
	"github.com/dentametrics/pmsync/helper"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms"
	"github.com/dentametrics/pmsync/syncstate"
)

type WebServerConfig struct {
	ConfigFile       string `errorTxt:"config file" mandatory:"yes"`
	LogLevel         string `errorTxt:"log level" mandatory:"yes"`
	Addr             string
	Port             int `errorTxt:"port" mandatory:"yes"`
	StackDumpOnPanic bool
}

// RunWebServer starts a read-only HTTP API over the warehouse's tracking
// state and blocks until interrupted.
func RunWebServer(web *WebServerConfig) error {
	if web == nil {
		return errors.New("nil pointer to web server config supplied")
	}
	log := logger.NewWebLogger("pmsync", web.LogLevel, web.StackDumpOnPanic, nil)
	if err := helper.ValidateStructIsPopulated(web); err != nil {
		return err
	}
	conf, err := config.NewFromFile(log, web.ConfigFile, config.EnvProvider{})
	if err != nil {
		return err
	}
	target, err := rdbms.OpenDbConnection(log, conf.Target)
	if err != nil {
		return errors.Wrap(err, "error connecting to target")
	}
	defer target.Close()
	tracker := syncstate.NewTracker(log, target, conf.TargetSchema)

	srv, chanStopServer := runServer(log, web, tracker)
	return waitForServer(log, srv, chanStopServer)
}

// runServer starts a web server and returns:
// 1) the server; and
// 2) a channel that can be used to stop the web server
func runServer(log logger.Logger, web *WebServerConfig, tracker *syncstate.Tracker) (*http.Server, chan string) {
	chanStopServer := make(chan string, 1)
	// Create routes.
	r := mux.NewRouter()
	r.Path("/health").HandlerFunc(GetHandlerHealth(log))
	r.Path("/api/status").HandlerFunc(GetHandlerStatus(log, tracker))
	r.Path("/api/status/{table}").HandlerFunc(GetHandlerTableStatus(log, tracker))
	r.HandleFunc("/stop", GetHandlerStopServer(log, chanStopServer))
	// Configure HTTP server.
	srv := &http.Server{ // Good practice to set timeouts to avoid Slowloris attacks.
		Addr:         fmt.Sprintf("%v:%v", web.Addr, web.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r, // supply our instance of gorilla/mux.
	}
	// Run HTTP server non-blocking.
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				log.Info(err)
			} else {
				log.Panic(err)
			}
		}
	}()
	log.Info(fmt.Sprintf("Listening on http://%v:%v", web.Addr, web.Port))
	return srv, chanStopServer
}

func waitForServer(log logger.Logger, srv *http.Server, chanStopServer chan string) error {
	// Block & wait for shutdown signals.
	// Accept graceful shutdowns when quit via SIGINT (Ctrl+C)
	// SIGKILL, SIGQUIT or SIGTERM (Ctrl+\) will not be caught.
	chanOS := make(chan os.Signal, 1)
	signal.Notify(chanOS, os.Interrupt) // request signals be sent to chanOS.
	select {
	case <-chanStopServer:
	case <-chanOS:
	}
	fmt.Println() // print new line char for clean looking CLI.
	log.Info("Shutting down web server...")
	wait := time.Second * 15
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	return srv.Shutdown(ctx)
}
