package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"

	"github.com/go-volink/volink"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the command registry over HTTP",
	Long: `Serve a small JSON API on top of the Optolink link:

  GET  /commands          list the known command names
  GET  /commands/{name}   read a parameter
  POST /commands/{name}   write a parameter, body {"value": ...}
  GET  /version           build info`,
	RunE: runServe,
}

type server struct {
	dev *volink.Device
}

func (s *server) listCommands(w http.ResponseWriter, r *http.Request) {
	names := s.dev.Registry().Names()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, names)
}

func (s *server) getCommand(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	v, err := s.dev.VRead(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"name": name, "value": v})
}

func (s *server) setCommand(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var body struct {
		Value interface{} `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if v, ok := body.Value.([]interface{}); ok {
		// JSON arrays arrive as []interface{}, bit fields want bit names
		set := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				set = append(set, s)
			}
		}
		body.Value = set
	}
	if err := s.dev.VWrite(name, body.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "OK")
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": buildVersion})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	e.Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, volink.ErrUnknownCommand):
		status = http.StatusNotFound
	case errors.Is(err, volink.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, volink.ErrUnrepresentable), errors.Is(err, volink.ErrLengthMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, volink.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func runServe(cmd *cobra.Command, args []string) error {
	dev, err := openDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	s := &server{dev: dev}
	router := mux.NewRouter()
	router.HandleFunc("/commands", s.listCommands).Methods("GET")
	router.HandleFunc("/commands/{name}", s.getCommand).Methods("GET")
	router.HandleFunc("/commands/{name}", s.setCommand).Methods("POST")
	router.HandleFunc("/version", versionInfo).Methods("GET")

	h := &http.Server{Addr: httpAddr, Handler: router}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-done
		h.Close()
	}()

	log.Infof("serving on %s", httpAddr)
	if err := h.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
