package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/schema"
	"github.com/clubroster/roster/internal/sync"
)

// SyncStatusData contains a sync status change
type SyncStatusData struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// DatasetUpdateData describes a replaced Dataset
type DatasetUpdateData struct {
	Source      string `json:"source"` // local, remote
	LastUpdated int64  `json:"last_updated"`
	ClubName    string `json:"club_name,omitempty"`
}

// PullCompleteData contains a pull outcome
type PullCompleteData struct {
	Manual        bool   `json:"manual"`
	Skipped       bool   `json:"skipped"`
	Adopted       bool   `json:"adopted"`
	RemoteVersion int64  `json:"remote_version,omitempty"`
	LocalVersion  int64  `json:"local_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Handler turns controller events into dashboard messages. It implements
// app.Observer.
type Handler struct {
	server *Server
	logger *log.Logger
}

var _ app.Observer = (*Handler)(nil)

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		logger: logger,
	}
}

// OnStatus handles sync status changes
func (h *Handler) OnStatus(status app.Status, err error) {
	data := SyncStatusData{Status: string(status)}
	if err != nil {
		data.Error = err.Error()
	}
	h.send(MessageTypeSyncStatus, data)
}

// OnDatasetChanged handles Dataset replacements and refreshes stats
func (h *Handler) OnDatasetChanged(ds *schema.Dataset, source app.Source) {
	data := DatasetUpdateData{
		Source:      string(source),
		LastUpdated: ds.LastUpdated,
	}
	if ds.Settings != nil {
		data.ClubName = ds.Settings.ClubName
	}
	h.send(MessageTypeDatasetUpdate, data)
	h.UpdateStats(ds)
}

// OnPull handles pull completion
func (h *Handler) OnPull(manual bool, res sync.PullResult, err error) {
	data := PullCompleteData{
		Manual:        manual,
		Skipped:       res.Skipped,
		Adopted:       res.Adopted,
		RemoteVersion: res.RemoteVersion,
		LocalVersion:  res.LocalVersion,
	}
	if err != nil {
		data.Error = err.Error()
	}
	h.logger.Printf("Pull complete: manual=%v adopted=%v", manual, res.Adopted)
	h.send(MessageTypePullComplete, data)
}

// UpdateStats broadcasts the record counts of ds. Useful at startup,
// before any event has fired.
func (h *Handler) UpdateStats(ds *schema.Dataset) {
	h.send(MessageTypeStats, ds.Stats())
}

func (h *Handler) send(t MessageType, v any) {
	dataJSON, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", t, err)
		return
	}

	h.server.Broadcast(Message{
		Type:      t,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}
