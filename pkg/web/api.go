package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/echotype/echotype/pkg/commands"
	"github.com/echotype/echotype/pkg/database"
	"github.com/echotype/echotype/pkg/logger"
	"github.com/echotype/echotype/pkg/phrases"
	"github.com/echotype/echotype/pkg/session"
)

// HistoryReader reads dictation history. *database.HistoryRepository
// satisfies it; nil disables the history endpoint.
type HistoryReader interface {
	GetRecentPaginated(page, perPage int) ([]database.HistoryEntry, int64, error)
}

// DeviceLister lists paired devices. *database.DeviceRepository satisfies
// it; nil disables the devices endpoint.
type DeviceLister interface {
	List() ([]database.PairedDevice, error)
}

// Recorder arms and disarms phrase recording mode on the dispatcher
type Recorder interface {
	StartRecording(code commands.Code)
	CancelRecording()
	Recording() (commands.Code, bool)
}

// API handles REST API endpoints
type API struct {
	logger   *logger.Logger
	manager  *session.Manager
	phrases  *phrases.Store
	history  HistoryReader
	devices  DeviceLister
	recorder Recorder
	hub      *WebSocketHub
}

// NewAPI creates a new API instance
func NewAPI(manager *session.Manager, store *phrases.Store, log *logger.Logger) *API {
	return &API{
		logger:  log,
		manager: manager,
		phrases: store,
	}
}

// WithHistory enables the history endpoint
func (a *API) WithHistory(history HistoryReader) *API {
	a.history = history
	return a
}

// WithDevices enables the devices endpoint
func (a *API) WithDevices(devices DeviceLister) *API {
	a.devices = devices
	return a
}

// WithRecorder enables the phrase recording endpoints
func (a *API) WithRecorder(recorder Recorder) *API {
	a.recorder = recorder
	return a
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}

// HandleStatus handles GET /api/status
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"service": "echotype",
		"session": a.manager.Status(),
	}
	if a.recorder != nil {
		if code, active := a.recorder.Recording(); active {
			response["recording_for"] = string(code)
		}
	}

	a.writeJSON(w, http.StatusOK, response)
}

// HandlePhrases handles /api/phrases:
//
//	GET    list all command phrase configurations
//	PUT    {"command": "...", "phrase": "..."} set a custom phrase
//	DELETE {"command": "..."} revert to the default
func (a *API) HandlePhrases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.writeJSON(w, http.StatusOK, a.phrases.All())

	case http.MethodPut, http.MethodPost:
		var req struct {
			Command string `json:"command"`
			Phrase  string `json:"phrase"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		code, ok := commands.ParseCode(req.Command)
		if !ok {
			a.writeError(w, http.StatusBadRequest, "unknown command: "+req.Command)
			return
		}
		if err := a.phrases.Set(code, req.Phrase); err != nil {
			a.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if a.hub != nil {
			a.hub.BroadcastPhraseChanged(string(code), a.phrases.Lookup(code))
		}
		a.writeJSON(w, http.StatusOK, map[string]string{
			"command": string(code),
			"phrase":  a.phrases.Lookup(code),
		})

	case http.MethodDelete:
		var req struct {
			Command string `json:"command"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		code, ok := commands.ParseCode(req.Command)
		if !ok {
			a.writeError(w, http.StatusBadRequest, "unknown command: "+req.Command)
			return
		}
		if err := a.phrases.Revert(code); err != nil {
			a.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if a.hub != nil {
			a.hub.BroadcastPhraseChanged(string(code), a.phrases.Lookup(code))
		}
		a.writeJSON(w, http.StatusOK, map[string]string{
			"command": string(code),
			"phrase":  a.phrases.Lookup(code),
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleHistory handles GET /api/history?page=N&per_page=M
func (a *API) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.history == nil {
		a.writeError(w, http.StatusNotFound, "history disabled")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 500 {
		perPage = 50
	}

	entries, total, err := a.history.GetRecentPaginated(page, perPage)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":  entries,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// HandleDevices handles GET /api/devices
func (a *API) HandleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.devices == nil {
		a.writeError(w, http.StatusNotFound, "device persistence disabled")
		return
	}

	devices, err := a.devices.List()
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, devices)
}

// HandlePairApprove handles POST /api/pair/approve
func (a *API) HandlePairApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := a.manager.Approve(); err != nil {
		a.writeError(w, http.StatusConflict, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"result": "approved"})
}

// HandlePairReject handles POST /api/pair/reject with an optional
// {"reason": "..."} body
func (a *API) HandlePairReject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := a.manager.Reject(req.Reason); err != nil {
		a.writeError(w, http.StatusConflict, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"result": "rejected"})
}

// HandleRecord handles /api/record:
//
//	POST   {"command": "..."} arm recording: the next dictated utterance
//	       becomes the command's custom phrase
//	DELETE disarm recording
func (a *API) HandleRecord(w http.ResponseWriter, r *http.Request) {
	if a.recorder == nil {
		a.writeError(w, http.StatusNotFound, "recording unavailable")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req struct {
			Command string `json:"command"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		code, ok := commands.ParseCode(req.Command)
		if !ok {
			a.writeError(w, http.StatusBadRequest, "unknown command: "+req.Command)
			return
		}
		a.recorder.StartRecording(code)
		if a.hub != nil {
			a.hub.BroadcastRecordingState(string(code), true)
		}
		a.writeJSON(w, http.StatusOK, map[string]string{"recording_for": string(code)})

	case http.MethodDelete:
		a.recorder.CancelRecording()
		if a.hub != nil {
			a.hub.BroadcastRecordingState("", false)
		}
		a.writeJSON(w, http.StatusOK, map[string]string{"result": "cancelled"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
