package actions

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/syncstate"
)

type WebServerResponse uint32

const (
	Okay WebServerResponse = iota + 1
	Error
)

func (w WebServerResponse) MarshalJSON() ([]byte, error) {
	var retval string
	switch w {
	case Okay:
		retval = "ok"
	case Error:
		retval = "error"
	default:
		err := fmt.Errorf("unhandled WebServerResponse value in MarshalJSON() conversion")
		return nil, err
	}
	return json.Marshal(retval)
}

type ResponseSimple struct {
	ServerStatus WebServerResponse `json:"status"`
}

type ResponseTableList struct {
	Status  WebServerResponse       `json:"status"`
	Message string                  `json:"message,omitempty"`
	Tables  []syncstate.TableStatus `json:"tables"`
}

type ResponseTableStatus struct {
	Status  WebServerResponse      `json:"status"`
	Message string                 `json:"message,omitempty"`
	Table   *syncstate.TableStatus `json:"table,omitempty"`
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerStopServer(log logger.Logger, chanStop chan string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chanStop <- "stop"
		log.Info("Stop signal sent")
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerStatus(log logger.Logger, tracker *syncstate.Tracker) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := tracker.Status(r.Context())
		if err != nil {
			log.Error(err)
			w.WriteHeader(http.StatusInternalServerError)
			respond(log, w, ResponseTableList{Status: Error, Message: fmt.Sprintf("error fetching sync status: %v", err)})
			return
		}
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseTableList{Status: Okay, Tables: rows})
	}
}

func GetHandlerTableStatus(log logger.Logger, tracker *syncstate.Tracker) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		tableName := vars["table"]
		rows, err := tracker.Status(r.Context())
		if err != nil {
			log.Error(err)
			w.WriteHeader(http.StatusInternalServerError)
			respond(log, w, ResponseTableStatus{Status: Error, Message: fmt.Sprintf("error fetching sync status: %v", err)})
			return
		}
		for idx := range rows {
			if rows[idx].TableName == tableName {
				w.WriteHeader(http.StatusOK)
				respond(log, w, ResponseTableStatus{Status: Okay, Table: &rows[idx]})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		respond(log, w, ResponseTableStatus{Status: Error, Message: fmt.Sprintf("table %q is not tracked", tableName)})
	}
}

// respond will marshal i to a string and write it to w.
func respond(log logger.Logger, w http.ResponseWriter, i interface{}) {
	j, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		log.Panic(err)
	}
	_, err = fmt.Fprint(w, string(j))
	if err != nil {
		log.Panic(err)
	}
}
