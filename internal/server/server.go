// Package server exposes the company sheet operations over HTTP: JSON
// routes for listing, reading, merge-writing and cloning worksheets, a
// websocket change feed and the embedded editor page.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.alis.build/alog"

	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/grid"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/sheet"
)

const maxBodyBytes = 10 << 20

//go:embed static/index.html
var indexHTML []byte

// Server routes HTTP requests to a sheet.Manager.
type Server struct {
	mgr     *sheet.Manager
	hub     *Hub
	editors *Editors
	mux     *http.ServeMux
}

// New builds the router. hub and editors may be nil; without a hub the
// change feed is not served.
func New(mgr *sheet.Manager, hub *Hub, editors *Editors) *Server {
	s := &Server{mgr: mgr, hub: hub, editors: editors, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	s.mux.HandleFunc("GET /companies", s.handleCompanies)
	s.mux.HandleFunc("GET /company/{companyId}/sheets", s.handleSheets)
	s.mux.HandleFunc("GET /sheet/{companyId}", s.handleRead)
	s.mux.HandleFunc("POST /sheet/{companyId}/update", s.requireEditor(s.handleUpdate))
	s.mux.HandleFunc("POST /sheet/{companyId}/clone", s.requireEditor(s.handleClone))
	if hub != nil {
		s.mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
			serveWs(hub, w, r)
		})
	}
	return s
}

// ServeHTTP adds CORS headers and answers preflight requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.mgr.Companies(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

type sheetEntry struct {
	SheetName string `json:"sheetName"`
	Index     int    `json:"index"`
}

func (s *Server) handleSheets(w http.ResponseWriter, r *http.Request) {
	infos, err := s.mgr.Sheets(r.Context(), r.PathValue("companyId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries := make([]sheetEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, sheetEntry{SheetName: info.Title, Index: info.Index})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	view, err := s.mgr.Read(r.Context(), r.PathValue("companyId"), r.URL.Query().Get("sheet"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	sheetName := r.URL.Query().Get("sheet")
	if sheetName == "" {
		writeError(w, http.StatusBadRequest, "sheet parameter is required")
		return
	}
	var body struct {
		Values   json.RawMessage `json:"values"`
		Editable json.RawMessage `json:"editable"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	values, err := grid.DecodeGrid(body.Values)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	editable, err := grid.DecodeMask(body.Editable)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.mgr.Update(r.Context(), sheet.UpdateRequest{
		Company:  r.PathValue("companyId"),
		Sheet:    sheetName,
		Values:   values,
		Editable: editable,
		User:     editorFrom(r.Context()),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rows":   rows,
		"sheet":  sheetName,
	})
}

func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SourceSheet string `json:"source_sheet"`
		NewSheet    string `json:"new_sheet"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	companyID := r.PathValue("companyId")
	_, err := s.mgr.Clone(r.Context(), sheet.CloneRequest{
		Company:  companyID,
		Source:   body.SourceSheet,
		NewSheet: body.NewSheet,
		User:     editorFrom(r.Context()),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"company":      companyID,
		"source_sheet": body.SourceSheet,
		"new_sheet":    body.NewSheet,
	})
}

// decodeBody reads a JSON body into v. An empty body leaves v zeroed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
	return false
}

// fail converts err into a JSON error response. Errors that are not
// classified by the sheet package are logged and reported as 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := sheet.KindOf(err)
	if kind == sheet.KindInternal {
		alog.Errorf(r.Context(), "server: %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, kind.Status(), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		alog.Warnf(context.Background(), "server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
