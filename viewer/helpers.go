package viewer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, "encode response: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// normalizeSort maps user facing sort keys onto GameSummary fields.
func normalizeSort(sortKey, sortDir string) (string, string) {
	sk := strings.ToLower(strings.TrimSpace(sortKey))
	sd := strings.ToLower(strings.TrimSpace(sortDir))
	if sd != "asc" && sd != "desc" {
		sd = "desc"
	}
	switch sk {
	case "time", "started", "started_ns":
		sk = "started_ns"
	case "id", "game", "game_id":
		sk = "game_id"
	case "turns", "turn_count":
		sk = "turn_count"
	case "winner":
		sk = "winner"
	case "source":
		sk = "source"
	case "file", "filename":
		sk = "file"
	default:
		sk = "started_ns"
		sd = "desc"
	}
	return sk, sd
}

func gameLess(a, b GameSummary, key string) bool {
	switch key {
	case "started_ns":
		if a.StartedNs == nil || b.StartedNs == nil {
			return a.GameID < b.GameID
		}
		return *a.StartedNs < *b.StartedNs
	case "turn_count":
		return a.TurnCount < b.TurnCount
	case "winner":
		return a.Winner < b.Winner
	case "source":
		return a.Source < b.Source
	case "file":
		return a.SourceFile < b.SourceFile
	}
	return a.GameID < b.GameID
}

// paginateGames sorts a copy of games and returns the requested page.
func paginateGames(games []GameSummary, limit, offset int, sortKey, sortDir string) []GameSummary {
	sk, sd := normalizeSort(sortKey, sortDir)

	sorted := make([]GameSummary, len(games))
	copy(sorted, games)
	sort.SliceStable(sorted, func(i, j int) bool {
		// Games without a start time sort last either way.
		if sk == "started_ns" && (sorted[i].StartedNs == nil) != (sorted[j].StartedNs == nil) {
			return sorted[j].StartedNs == nil
		}
		if sd == "desc" {
			return gameLess(sorted[j], sorted[i], sk)
		}
		return gameLess(sorted[i], sorted[j], sk)
	})

	if offset >= len(sorted) {
		return []GameSummary{}
	}
	end := offset + limit
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[offset:end]
}
