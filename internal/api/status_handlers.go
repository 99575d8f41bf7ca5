package api

import (
	"net/http"
	"os"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/deps"
)

// handleStatus reports daemon health: job counts, database location, and the
// availability of the external tools the pipeline shells out to.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	counts, err := s.store.Health(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	dbHealth, _ := s.store.CheckHealth(r.Context())

	statuses := deps.CheckBinaries(deps.Requirements(s.cfg))
	views := FromDependencies(statuses)
	for i, status := range statuses {
		if status.Available {
			views[i].Version = deps.ToolVersion(r.Context(), status.Command)
		}
	}

	s.writeJSON(w, http.StatusOK, StatusResponse{Status: DaemonStatus{
		Running:      true,
		PID:          os.Getpid(),
		StoreDBPath:  dbHealth.DBPath,
		LockFilePath: s.cfg.LockPath(),
		StorageKind:  s.cfg.Storage.Backend,
		Jobs:         FromJobCounts(counts),
		Dependencies: views,
	}})
}
