package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benchradar/benchradar/internal/geo"
	"github.com/benchradar/benchradar/internal/model"
	"github.com/benchradar/benchradar/internal/repo"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the BenchRadar API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		}))

		s := &server{env: e}

		r.Get("/health", s.health)
		r.Route("/api/benches", func(r chi.Router) {
			r.Get("/", s.listBenches)
			r.Post("/", s.createBench)
			r.Get("/{id}", s.getBench)
			r.Patch("/{id}/status", s.setStatus)
			r.Delete("/{id}", s.deleteBench)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type server struct {
	env *env
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listBenches serves GET /api/benches with optional status, limit, before
// (RFC 3339 cursor), and bbox (swLat,swLng,neLat,neLng) parameters. With
// a bbox it returns the benches inside the viewport; otherwise it returns
// one moderation page.
func (s *server) listBenches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := model.BenchStatus(q.Get("status"))
	if status == "" {
		status = model.BenchStatusApproved
	}
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	if bbox := q.Get("bbox"); bbox != "" {
		bounds, err := parseBBox(bbox)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid bbox")
			return
		}
		benches, err := s.env.Repos.FetchBenchesInBounds(r.Context(), bounds, status)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"benches": benches})
		return
	}

	limit := cfg.Admin.PageSize
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	var before *time.Time
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before cursor")
			return
		}
		before = &t
	}

	rows, err := s.env.Repos.FetchBenches(r.Context(), status, limit, before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]any{"rows": rows}
	if len(rows) > 0 {
		resp["next_before"] = rows[len(rows)-1].CreatedAt.Format(time.RFC3339Nano)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) getBench(w http.ResponseWriter, r *http.Request) {
	b, err := s.env.Repos.GetBench(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "bench not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// createBench serves POST /api/benches as a multipart form: lat, lng,
// description, created_by fields plus one or more photo file parts. It
// runs the submission workflow server-side: upload photos, create the
// pending bench row, insert photo rows with the first photo as main.
func (s *server) createBench(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	lat, lng, ok := geo.ParseCoordinates(r.FormValue("lat") + "," + r.FormValue("lng"))
	if !ok {
		writeError(w, http.StatusBadRequest, geo.MsgInvalidFormat)
		return
	}

	var files []repo.PhotoFile
	for _, fh := range r.MultipartForm.File["photo"] {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable photo part")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable photo part")
			return
		}
		files = append(files, repo.PhotoFile{Name: fh.Filename, Data: data})
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "Add at least one photo.")
		return
	}

	urls, err := s.env.Repos.UploadPhotos(r.Context(), files)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	created, err := s.env.Repos.CreateBench(r.Context(), model.Bench{
		Latitude:     lat,
		Longitude:    lng,
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		MainPhotoURL: urls[0],
		CreatedBy:    r.FormValue("created_by"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.env.Repos.InsertBenchPhotos(r.Context(), created.ID, urls, urls[0]); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	created.PhotoURLs = urls
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) setStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.BenchStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.env.Repos.SetBenchStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(req.Status)})
}

func (s *server) deleteBench(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.env.Repos.DeleteBench(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseBBox parses "swLat,swLng,neLat,neLng".
func parseBBox(s string) (geo.Bounds, error) {
	var swLat, swLng, neLat, neLng float64
	if _, err := fmt.Sscanf(s, "%f,%f,%f,%f", &swLat, &swLng, &neLat, &neLng); err != nil {
		return geo.Bounds{}, eris.Wrap(err, "parse bbox")
	}
	return geo.NewBounds(swLat, swLng, neLat, neLng), nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
