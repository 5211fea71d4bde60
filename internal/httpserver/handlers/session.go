package handlers

import (
	"net/http"

	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/httpserver/deps"
	"github.com/ebk1996/services/internal/logger"
)

// identityView is the wire shape of the session principal.
type identityView struct {
	UID         string `json:"uid"`
	Provider    string `json:"provider"`
	DisplayName string `json:"display_name,omitempty"`
}

// sessionResponse reports where the bootstrapper currently stands.
// Identity is null until the first sign-in resolves and between a
// sign-out and the automatic anonymous re-bootstrap.
type sessionResponse struct {
	State    domain.AuthState `json:"state"`
	Loading  bool             `json:"loading"`
	Identity *identityView    `json:"identity,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func viewIdentity(identity *domain.Identity) *identityView {
	if identity == nil {
		return nil
	}
	return &identityView{
		UID:         identity.UID,
		Provider:    string(identity.Provider),
		DisplayName: identity.DisplayName,
	}
}

func sessionState(d deps.Deps) sessionResponse {
	resp := sessionResponse{
		State:    d.Boot.State(),
		Loading:  d.Boot.Loading(),
		Identity: viewIdentity(d.Boot.Identity()),
	}
	if err := d.Boot.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// Session serves the current auth state. Unlike the listings API it is
// not blocked by a failed setup: the shell asks it what went wrong.
func Session(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Boot.SetupErr(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, sessionResponse{
				State: domain.AuthFailed,
				Error: err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, sessionState(d))
	}
}

// SignOut ends the current session. The bootstrapper's watch loop picks
// up the cleared identity and re-authenticates anonymously on its own;
// 202 tells the caller the rest happens behind the next session poll.
func SignOut(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if blockedBySetup(w, d) {
			return
		}

		if err := d.Boot.SignOut(r.Context()); err != nil {
			d.Logger.Warn("sign-out failed",
				logger.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, sessionState(d))
	}
}
