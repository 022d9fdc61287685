package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/simplepage/browser"
	"github.com/hazyhaar/simplepage/session"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	pages, connected := s.mgr.Health()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"pages":            pages,
		"browserConnected": connected,
	})
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.ListPages())
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name          string `json:"name"`
		URL           string `json:"url"`
		Description   string `json:"description"`
		Timeout       int    `json:"timeout"`
		RecordActions *bool  `json:"recordActions"`
		Screenshot    *bool  `json:"screenshot"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeErr(w, err)
		return
	}
	record := true
	if body.RecordActions != nil {
		record = *body.RecordActions
	}
	info, err := s.mgr.CreatePage(r.Context(), session.CreateRequest{
		Name:          body.Name,
		URL:           body.URL,
		Description:   body.Description,
		TimeoutMs:     body.Timeout,
		RecordActions: record,
		Screenshots:   body.Screenshot,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	info, err := s.mgr.PageDetail(chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleClosePage(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.ClosePage(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL         string `json:"url"`
		Timeout     int    `json:"timeout"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeErr(w, err)
		return
	}
	url, err := s.mgr.Navigate(r.Context(), chi.URLParam(r, "id"), body.URL, body.Timeout, body.Description)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}

func (s *Server) handleNavigateBack(w http.ResponseWriter, r *http.Request) {
	s.historyMove(w, r, "back")
}

func (s *Server) handleNavigateForward(w http.ResponseWriter, r *http.Request) {
	s.historyMove(w, r, "forward")
}

func (s *Server) historyMove(w http.ResponseWriter, r *http.Request, dir string) {
	var body struct {
		Description string `json:"description"`
	}
	_ = decodeBody(r, &body) // empty body is fine

	var url string
	var err error
	if dir == "back" {
		url, err = s.mgr.NavigateBack(r.Context(), chi.URLParam(r, "id"), body.Description)
	} else {
		url, err = s.mgr.NavigateForward(r.Context(), chi.URLParam(r, "id"), body.Description)
	}
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Timeout int `json:"timeout"`
	}
	_ = decodeBody(r, &body)
	url, err := s.mgr.Reload(r.Context(), chi.URLParam(r, "id"), body.Timeout)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	res, err := s.mgr.Structure(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("selector"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	html, err := s.mgr.HTML(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func (s *Server) handleActXPath(w http.ResponseWriter, r *http.Request) {
	var body struct {
		XPath       string   `json:"xpath"`
		Method      string   `json:"method"`
		Args        []string `json:"args"`
		Description string   `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeErr(w, err)
		return
	}
	err := s.mgr.ActXPath(r.Context(), chi.URLParam(r, "id"), body.XPath, body.Method, body.Args, body.Description)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleActID(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EncodedID   string   `json:"encodedId"`
		Method      string   `json:"method"`
		Args        []string `json:"args"`
		Description string   `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeErr(w, err)
		return
	}
	err := s.mgr.ActEncodedID(r.Context(), chi.URLParam(r, "id"), body.EncodedID, body.Method, body.Args, body.Description)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Timeout     int    `json:"timeout"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.mgr.Wait(r.Context(), chi.URLParam(r, "id"), body.Timeout, body.Description); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCondition(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pattern     string `json:"pattern"`
		Flags       string `json:"flags"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeErr(w, err)
		return
	}
	matched, err := s.mgr.Condition(r.Context(), chi.URLParam(r, "id"), body.Pattern, body.Flags, body.Description)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"matched": matched})
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	png, err := s.mgr.Screenshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (s *Server) handleXPathLookup(w http.ResponseWriter, r *http.Request) {
	xpath, err := s.mgr.XPathLookup(chi.URLParam(r, "id"), chi.URLParam(r, "encodedId"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"xpath": xpath})
}

func (s *Server) handleGetListHTML(w http.ResponseWriter, r *http.Request) {
	s.listHTML(w, r, false)
}

func (s *Server) handleGetListHTMLByParent(w http.ResponseWriter, r *http.Request) {
	s.listHTML(w, r, true)
}

func (s *Server) listHTML(w http.ResponseWriter, r *http.Request, byParent bool) {
	var body struct {
		Selector string `json:"selector"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeErr(w, err)
		return
	}
	listFile, count, err := s.mgr.GetListHTML(r.Context(), chi.URLParam(r, "id"), body.Selector, byParent)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "listFile": listFile, "count": count})
}

func (s *Server) handleGetElementHTML(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Selector string `json:"selector"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeErr(w, err)
		return
	}
	elementFile, err := s.mgr.GetElementHTML(r.Context(), chi.URLParam(r, "id"), body.Selector)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "elementFile": elementFile})
}

func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		s.writeErr(w, browser.NewError(browser.KindBadRequest, "action index must be an integer"))
		return
	}
	if err := s.mgr.DeleteAction(chi.URLParam(r, "id"), idx); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteRecords(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.DeleteAllRecords(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
