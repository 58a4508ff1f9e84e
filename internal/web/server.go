package web

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/numberpro/internal/auth"
	"github.com/example/numberpro/internal/inventory"
	"github.com/example/numberpro/internal/jobs"
)

//go:embed templates/*.html
var fs embed.FS

// Server is the provisioning dashboard: log in, watch and create
// number-acquisition jobs, manage stored inventory credentials.
type Server struct {
	Auth *auth.Store
	Jobs *jobs.Repo
	Log  *slog.Logger
}

type tmplData struct {
	Title string
	User  string

	Flash string
	Jobs  []jobs.Job
	Job   jobs.Job
	Creds auth.InventoryCredentials
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome)))
	mux.Handle("/jobs/new", s.Auth.RequireAuth(http.HandlerFunc(s.handleJobNew)))
	mux.Handle("/jobs/create", s.Auth.RequireAuth(http.HandlerFunc(s.handleJobCreate)))
	mux.Handle("/credentials", s.Auth.RequireAuth(http.HandlerFunc(s.handleCredentials)))

	return mux
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	js, err := s.Jobs.ListByUser(r.Context(), uid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/jobs.html", tmplData{Title: "Provisioning Jobs", User: uid, Jobs: js})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		id, err := s.Auth.Authenticate(r.Context(), username, r.FormValue("password"))
		if err != nil {
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleJobNew(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	s.render(w, "templates/new_job.html", tmplData{
		Title: "New Job",
		User:  uid,
		Job: jobs.Job{
			SystemType:   "cisco",
			MaxAttempts:  5,
			NeverExpires: true,
			IntervalSec:  30,
		},
	})
}

func (s *Server) handleJobCreate(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	systemID, _ := strconv.Atoi(r.FormValue("system_id"))
	maxAttempts, _ := strconv.Atoi(r.FormValue("max_attempts"))
	intervalSec, _ := strconv.Atoi(r.FormValue("interval_seconds"))
	windowMin, _ := strconv.Atoi(r.FormValue("window_minutes"))
	if windowMin < 1 {
		windowMin = 60
	}

	j := jobs.Job{
		UserID:        uid,
		Name:          strings.TrimSpace(r.FormValue("name")),
		SystemID:      systemID,
		SystemType:    inventory.SystemType(strings.TrimSpace(r.FormValue("system_type"))),
		RangeName:     strings.TrimSpace(r.FormValue("range_name")),
		DesiredNumber: strings.TrimSpace(r.FormValue("desired_number")),
		Reason:        strings.TrimSpace(r.FormValue("reason")),
		Description:   strings.TrimSpace(r.FormValue("description")),
		MaxAttempts:   maxAttempts,
		IntervalSec:   intervalSec,
	}

	switch r.FormValue("expiry_mode") {
	case "date":
		d, err := time.Parse("2006-01-02", r.FormValue("expires_on"))
		if err != nil {
			s.render(w, "templates/new_job.html", tmplData{Title: "New Job", User: uid, Flash: "Invalid expiration date", Job: j})
			return
		}
		j.ExpiresOn = &d
	default:
		j.NeverExpires = true
	}

	start := time.Now().UTC()
	if v := strings.TrimSpace(r.FormValue("start_at")); v != "" {
		t, err := time.Parse("2006-01-02T15:04", v)
		if err != nil {
			s.render(w, "templates/new_job.html", tmplData{Title: "New Job", User: uid, Flash: "Invalid start time", Job: j})
			return
		}
		start = t.UTC()
	}
	j.WindowStartAt = start
	j.WindowEndAt = start.Add(time.Duration(windowMin) * time.Minute)

	if err := j.Validate(); err != nil {
		s.render(w, "templates/new_job.html", tmplData{Title: "New Job", User: uid, Flash: err.Error(), Job: j})
		return
	}
	if _, err := s.Jobs.Create(r.Context(), j); err != nil {
		s.Log.Error("create job failed", "error", err)
		s.render(w, "templates/new_job.html", tmplData{Title: "New Job", User: uid, Flash: "Failed to create job", Job: j})
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		c, err := s.Auth.GetInventoryCredentials(r.Context(), uid)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		// never echo the password back into the form
		c.Password = ""
		s.render(w, "templates/credentials.html", tmplData{Title: "Inventory Credentials", User: uid, Creds: c})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c := auth.InventoryCredentials{
			Username: strings.TrimSpace(r.FormValue("username")),
			Password: r.FormValue("password"),
		}
		if err := s.Auth.UpdateInventoryCredentials(r.Context(), uid, c); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.render(w, "templates/credentials.html", tmplData{Title: "Inventory Credentials", User: uid, Flash: "Saved"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs, "templates/base.html", name)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

// Start serves h until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("dashboard listening", "addr", addr)
	return srv.ListenAndServe()
}
