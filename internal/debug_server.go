package internal

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
)

//go:embed inspect.html
var templatesFS embed.FS

// DocumentLister is implemented by stores able to enumerate their documents.
type DocumentLister interface {
	Documents(ctx context.Context) ([]contract.DocumentSnapshot, error)
}

type InspectRow struct {
	Room        string
	CreatedAt   string
	Typing      string
	Messages    int
	Skipped     int
	LastAt      string
	LastMessage string
}

type PageData struct {
	Filter string
	Items  []InspectRow
	Stats  map[string]any
}

// RoomRows decodes room documents into one printable row each.
func RoomRows(docs []contract.DocumentSnapshot) []InspectRow {
	return lo.Map(docs, func(doc contract.DocumentSnapshot, _ int) InspectRow {
		room, skipped := domain.DecodeRoom(domain.RoomID(doc.Key), doc.Fields)
		messages := domain.ReduceSnapshot(room.Messages)
		row := InspectRow{
			Room:        doc.Key,
			CreatedAt:   "--",
			Typing:      "-",
			Messages:    len(messages),
			Skipped:     skipped,
			LastAt:      "--:--:--",
			LastMessage: "",
		}
		if !room.CreatedAt.IsZero() {
			row.CreatedAt = room.CreatedAt.Format(time.DateTime)
		}
		if room.TypingUser != nil {
			row.Typing = room.TypingUser.String()
		}
		if len(messages) > 0 {
			last := messages[len(messages)-1]
			row.LastAt = last.CreatedAt.Format("15:04:05")
			row.LastMessage = fmt.Sprintf("%s: %s", last.SentBy, truncate(last.Content, 40))
		}
		return row
	})
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// NewDebugServer serves an HTML view of the stored rooms on /inspect.
// ?room= filters rooms whose key contains the given participant.
func NewDebugServer(log *slog.Logger, lister DocumentLister, host string, port int) *http.Server {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("room")
		docs, err := lister.Documents(r.Context())
		if err != nil {
			log.Warn("Documents listing failed", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		rows := lo.Filter(RoomRows(docs), func(row InspectRow, _ int) bool {
			return filter == "" || strings.Contains(row.Room, filter)
		})
		data := PageData{
			Filter: filter,
			Items:  rows,
			Stats: map[string]any{
				"rooms":    len(rows),
				"messages": lo.SumBy(rows, func(row InspectRow) int { return row.Messages }),
				"typing":   lo.CountBy(rows, func(row InspectRow) bool { return row.Typing != "-" }),
			},
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			log.Warn("Inspect page rendering failed", "error", err)
		}
	})

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
