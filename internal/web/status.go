package web

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/fastfinder/fastfinder/internal/version"
)

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	info := version.GetVersionInfo()
	e.Obj(func(e *jx.Encoder) {
		e.Field("version", func(e *jx.Encoder) { e.Str(info.Version) })
		e.Field("commit", func(e *jx.Encoder) { e.Str(info.CommitSHA) })
		e.Field("go", func(e *jx.Encoder) { e.Str(info.GoVersion) })
		e.Field("home_dc", func(e *jx.Encoder) { e.Int(s.sessions.HomeDC()) })
		e.Field("sessions", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, st := range s.sessions.Stats() {
					e.Obj(func(e *jx.Encoder) {
						e.Field("dc", func(e *jx.Encoder) { e.Int(st.DC) })
						e.Field("media", func(e *jx.Encoder) { e.Bool(st.Media) })
						e.Field("created", func(e *jx.Encoder) { e.Str(st.Created.UTC().Format(time.RFC3339)) })
					})
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(e.Bytes())
}
