package worker

import (
	"time"

	"github.com/hibiken/asynq"
)

// RegisterHandlers wires all task handlers into mux
func RegisterHandlers(mux *asynq.ServeMux, archiver Archiver, loc *time.Location) {
	archiveHandler := NewArchiveTaskHandler(archiver, loc)

	mux.HandleFunc(TypeArchiveDaily, archiveHandler.Handle)
}
