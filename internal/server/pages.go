package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/EmpoweredVote/memoboard/internal/httpx"
)

// pageHandler serves the built UI from dir. Paths that are not files fall
// back to index.html so client-side routes such as /memos/{id} load. With no
// dir it answers with a one-line placeholder.
func pageHandler(dir string) http.Handler {
	if dir == "" {
		return http.HandlerFunc(placeholder)
	}

	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(clean); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		httpx.NoCache(w)
		http.ServeFile(w, r, index)
	})
}

func placeholder(w http.ResponseWriter, r *http.Request) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "memoboard %s\n", r.URL.Path)
}
