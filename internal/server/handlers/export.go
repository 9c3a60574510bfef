package handlers

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/biorecords/biorecords/internal/export"
)

// HandleExport handles GET /export/{kind}.csv for threats, actions and
// documents. The file is built in memory so a failure still answers with
// the JSON error envelope.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	kind, err := export.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	n, err := export.Write(r.Context(), h.store, kind, &buf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Debug().Str("export", string(kind)).Int("rows", n).Msg("Exported CSV")

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": kind.Filename()}))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
