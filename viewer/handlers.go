package viewer

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds shared state for HTTP handlers.
type Server struct {
	source Source
	logger *slog.Logger
	pages  *template.Template
}

func NewServer(source Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		source: source,
		logger: logger,
		pages:  template.Must(template.New("pages").Funcs(templateFuncs).Parse(pageTemplates)),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/games/{id}", s.handleReplay)
	r.Route("/api", func(r chi.Router) {
		r.Use(withCORS)
		r.Get("/games", s.handleGames)
		r.Get("/games/{id}/turns", s.handleGameTurns)
		r.Get("/stats", s.handleStats)
	})
	return r
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrGameNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Error("viewer request failed", "path", r.URL.Path, "err", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.source.Games(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit := parseIntQuery(r, "limit", 100)
	offset := parseIntQuery(r, "offset", 0)
	sortKey, sortDir := normalizeSort(r.URL.Query().Get("sort"), r.URL.Query().Get("dir"))
	writeJSON(w, GamesResponse{
		Total:  len(games),
		Limit:  limit,
		Offset: offset,
		Sort:   sortKey,
		Dir:    sortDir,
		Games:  paginateGames(games, limit, offset, sortKey, sortDir),
	})
}

func (s *Server) turns(r *http.Request) (TurnsResponse, error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	rows, err := s.source.Turns(r.Context(), id)
	if err != nil {
		return TurnsResponse{}, err
	}
	resp := TurnsResponse{GameID: id, Winner: rows[0].Winner, Source: rows[0].Source}
	resp.Turns = make([]Turn, 0, len(rows))
	for _, row := range rows {
		resp.Turns = append(resp.Turns, turnFromRow(row))
	}
	return resp, nil
}

func (s *Server) handleGameTurns(w http.ResponseWriter, r *http.Request) {
	resp, err := s.turns(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.source.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"stats": stats})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render page", "page", name, "path", r.URL.Path, "err", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	games, err := s.source.Games(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stats, err := s.source.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit := parseIntQuery(r, "limit", 200)
	offset := parseIntQuery(r, "offset", 0)
	sortKey, sortDir := normalizeSort(r.URL.Query().Get("sort"), r.URL.Query().Get("dir"))
	s.render(w, r, "index", map[string]any{
		"Total": len(games),
		"Games": paginateGames(games, limit, offset, sortKey, sortDir),
		"Stats": stats,
	})
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	resp, err := s.turns(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "replay", resp)
}

var templateFuncs = template.FuncMap{
	"odd": func(i int) bool { return i%2 == 1 },
	"tokenClass": func(tok string) string {
		switch tok {
		case "R":
			return "one"
		case "B":
			return "two"
		case "0":
			return "water"
		}
		return "fish"
	},
}

const pageTemplates = `
{{define "head"}}<!doctype html>
<html><head><meta charset="utf-8"><title>{{.}}</title>
<style>
body { font-family: sans-serif; }
table.board td { width: 1.6em; height: 1.6em; text-align: center; }
table.board tr.odd td:first-child { padding-left: 0.8em; }
td.one { background: #e66; } td.two { background: #66e; }
td.water { background: #acd; color: #acd; } td.fish { background: #eef; }
</style></head><body>{{end}}

{{define "index"}}{{template "head" "Archived games"}}
<h1>Archived games ({{.Total}})</h1>
<table id="stats">
<tr><th>Source</th><th>Winner</th><th>Games</th><th>Rows</th><th>Avg depth</th></tr>
{{range .Stats}}<tr><td>{{.Source}}</td><td>{{.Winner}}</td><td>{{.Games}}</td><td>{{.Rows}}</td><td>{{printf "%.1f" .AvgDepth}}</td></tr>
{{end}}</table>
<table id="games">
<tr><th>Game</th><th>Turns</th><th>Winner</th><th>Source</th><th>File</th></tr>
{{range .Games}}<tr class="game"><td><a href="/games/{{.GameID}}">{{.GameID}}</a></td><td>{{.TurnCount}}</td><td class="winner">{{.Winner}}</td><td>{{.Source}}</td><td>{{.SourceFile}}</td></tr>
{{end}}</table>
</body></html>{{end}}

{{define "replay"}}{{template "head" .GameID}}
<h1>{{.GameID}}</h1>
<p>Winner: <span id="winner">{{.Winner}}</span> Source: {{.Source}}</p>
{{range .Turns}}<section class="turn" id="turn-{{.Turn}}">
<h2>Turn {{.Turn}} ({{.Team}}) fish {{index .Fish 0}}:{{index .Fish 1}}</h2>
<table class="board">
{{range $y, $row := .Board}}<tr{{if odd $y}} class="odd"{{end}}>{{range $row}}<td class="{{tokenClass .}}">{{.}}</td>{{end}}</tr>
{{end}}</table>
<p>Move <span class="move">{{.MoveText}}</span> score <span class="score">{{printf "%.2f" .Score}}</span> depth <span class="depth">{{.Depth}}</span> nodes {{.Nodes}} reason {{.Reason}}</p>
{{if .Search}}<table class="search">
<tr><th>Depth</th><th>Move</th><th>Score</th><th>Nodes</th><th>Complete</th></tr>
{{range .Search}}<tr><td>{{.Depth}}</td><td>{{.Move}}</td><td>{{printf "%.2f" .Score}}</td><td>{{.Nodes}}</td><td>{{.Complete}}</td></tr>
{{end}}</table>{{end}}
</section>
{{end}}</body></html>{{end}}
`
