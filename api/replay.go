package api

import (
	"net/http"

	"github.com/hazyhaar/simplepage/action"
	"github.com/hazyhaar/simplepage/browser"
	"github.com/hazyhaar/simplepage/replay"
)

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actions []action.Record `json:"actions"`
		Options struct {
			DelayMs         int  `json:"delayMs"`
			Verbose         bool `json:"verbose"`
			ContinueOnError bool `json:"continueOnError"`
		} `json:"options"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeErr(w, err)
		return
	}
	if len(body.Actions) == 0 {
		s.writeErr(w, browser.NewError(browser.KindBadRequest, "actions is required"))
		return
	}

	res, err := replay.Run(r.Context(), body.Actions, replay.Options{
		BaseURL:         s.cfg.SelfURL,
		DelayMs:         body.Options.DelayMs,
		Verbose:         body.Options.Verbose,
		ContinueOnError: body.Options.ContinueOnError,
		Logger:          s.log,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
