package web

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/fastfinder/fastfinder/internal/logging"
	"github.com/fastfinder/fastfinder/internal/media"
)

const notFound = "<h3>File not found</h3>"

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<title>Search Files</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>
body { font-family: Arial, sans-serif; background: #0f172a; color: #e5e7eb; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; }
.box { background: #020617; padding: 25px; border-radius: 10px; width: 100%; max-width: 400px; box-shadow: 0 0 15px rgba(0,0,0,0.6); }
h2 { text-align: center; margin-bottom: 20px; }
input, button { width: 100%; padding: 12px; border-radius: 6px; border: none; font-size: 16px; box-sizing: border-box; }
input { outline: none; margin-bottom: 12px; }
button { background: #2563eb; color: white; cursor: pointer; }
button:hover { background: #1d4ed8; }
.footer { margin-top: 15px; text-align: center; font-size: 12px; opacity: 0.7; }
</style>
</head>
<body>
<div class="box">
  <h2>Search Files</h2>
  <input id="q" type="text" placeholder="Enter movie / series name">
  <button onclick="go()">Search in Telegram</button>
  <div class="footer">Service is running</div>
</div>
<script>
function go() {
  const q = document.getElementById("q").value.trim();
  if (!q) return;
  window.location.href = "https://t.me/" + {{.Bot}} + "?start=search_" + encodeURIComponent(q);
}
</script>
</body>
</html>
`))

var watchTemplate = template.Must(template.New("watch").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Watch - {{.Name}}</title>
<link rel="stylesheet" href="https://cdn.plyr.io/3.7.8/plyr.css">
<style>
:root { --primary: #e53935; --bg: #ffffff; --text: #111111; }
body { margin: 0; font-family: system-ui, -apple-system, BlinkMacSystemFont, sans-serif; background: var(--bg); color: var(--text); }
header { padding: 12px 16px; font-weight: 700; font-size: 18px; color: var(--primary); }
.container { padding: 12px; max-width: 900px; margin: auto; }
.player-box { background: #000; border-radius: 12px; overflow: hidden; }
video { width: 100%; height: auto; }
.file-name { font-size: 16px; font-weight: 600; margin: 12px 0; }
.download-btn { display: block; text-align: center; padding: 12px; background: var(--primary); color: #fff; font-weight: 600; border-radius: 10px; text-decoration: none; }
</style>
</head>
<body>
<header>FAST FINDER</header>
<div class="container">
  <div class="player-box">
    <video class="player" controls playsinline src="{{.Src}}"></video>
  </div>
  <div class="file-name">{{.Name}}</div>
  <a class="download-btn" href="{{.Src}}" download>Direct Download</a>
</div>
<script src="https://cdn.plyr.io/3.7.8/plyr.js"></script>
<script>
(function () {
  if (!window.Telegram || !Telegram.WebApp) return;
  const t = Telegram.WebApp.themeParams;
  const r = document.documentElement;
  if (t.button_color) r.style.setProperty('--primary', t.button_color);
  if (t.bg_color) r.style.setProperty('--bg', t.bg_color);
  if (t.text_color) r.style.setProperty('--text', t.text_color);
})();
new Plyr('.player', { controls: ['play', 'progress', 'current-time', 'fullscreen'] });
</script>
</body>
</html>
`))

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, indexTemplate, http.StatusOK, struct{ Bot string }{Bot: s.opts.BotUsername})
}

func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := messageID(r)
	if !ok {
		writeHTML(w, http.StatusNotFound, notFound)
		return
	}

	info, err := s.media.Media(ctx, s.opts.Channel, id)
	if errors.Is(err, media.ErrNotFound) {
		writeHTML(w, http.StatusNotFound, notFound)
		return
	}
	if err != nil {
		logging.FromContext(ctx).Error("watch.lookup", zap.Int("message", id), zap.Error(err))
		writeHTML(w, http.StatusInternalServerError, somethingWentWrong)
		return
	}

	s.render(w, r, watchTemplate, http.StatusOK, struct{ Name, Src string }{
		Name: fileName(info),
		Src:  s.opts.BaseURL + "download/" + strconv.Itoa(id),
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, t *template.Template, status int, data any) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		logging.FromContext(r.Context()).Error("render", zap.String("template", t.Name()), zap.Error(err))
		writeHTML(w, http.StatusInternalServerError, somethingWentWrong)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
