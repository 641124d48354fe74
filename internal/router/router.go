package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/escuela-posgrado/sistema-academico/internal/api/auth"
	"github.com/escuela-posgrado/sistema-academico/internal/api/intranet"
	"github.com/escuela-posgrado/sistema-academico/internal/api/matricula"
	"github.com/escuela-posgrado/sistema-academico/internal/api/user"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

// Config contains the handlers and middleware dependencies for the router.
type Config struct {
	Logger           *slog.Logger
	Tokens           *auth.TokenIssuer
	AuthHandler      auth.AuthHandler
	UserHandler      user.Handler
	IntranetHandler  intranet.Handler
	MatriculaHandler matricula.Handler
}

// SetupRouter wires the HTTP surface. Server-wide middleware (requestID,
// recoverer, structured logger) is applied in main.go before mounting.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:4200"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	authenticate := auth.Authenticate(cfg.Logger, cfg.Tokens)
	adminOnly := auth.RequireRole(cfg.Logger, types.RolAdmin)
	staffOnly := auth.RequireRole(cfg.Logger, types.RolAdmin, types.RolCoordinador)
	teachingStaff := auth.RequireRole(cfg.Logger, types.RolAdmin, types.RolCoordinador, types.RolDocente)

	r.Route("/api", func(r chi.Router) {

		// Public auth routes
		r.Group(func(r chi.Router) {
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/registro", cfg.AuthHandler.Register)
			r.Post("/auth/google-login", cfg.AuthHandler.GoogleLogin)
		})

		// Routes behind a valid token
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/auth/me", cfg.AuthHandler.Me)
			r.Get("/auth/validate", cfg.AuthHandler.Validate)
			r.Put("/auth/password", cfg.AuthHandler.ChangePassword)

			r.Route("/usuarios", func(r chi.Router) {
				r.With(staffOnly).Get("/", cfg.UserHandler.ListUsuarios)
				r.Get("/{id}", cfg.UserHandler.GetUsuario)
				r.Put("/{id}", cfg.UserHandler.UpdateUsuario)
				r.With(adminOnly).Put("/{id}/desactivar", cfg.UserHandler.Desactivar)
				r.With(adminOnly).Put("/{id}/activar", cfg.UserHandler.Activar)
			})

			r.Route("/intranet", func(r chi.Router) {
				r.With(teachingStaff).Post("/asistencias", cfg.IntranetHandler.RegistrarAsistencia)
				r.Get("/asistencias", cfg.IntranetHandler.ListAsistencias)
				r.Get("/asistencias/resumen", cfg.IntranetHandler.ResumenAsistencia)
				r.With(teachingStaff).Post("/notas", cfg.IntranetHandler.RegistrarNota)
				r.Get("/notas", cfg.IntranetHandler.ListNotas)
				r.Get("/notas/promedio", cfg.IntranetHandler.PromedioNotas)
			})

			r.Route("/matricula", func(r chi.Router) {
				r.With(adminOnly).Post("/periodos", cfg.MatriculaHandler.CreatePeriodo)
				r.Get("/periodos", cfg.MatriculaHandler.ListPeriodos)
				r.Get("/periodos/activo", cfg.MatriculaHandler.GetPeriodoActivo)
				r.With(adminOnly).Put("/periodos/{id}/activar", cfg.MatriculaHandler.ActivarPeriodo)
				r.With(staffOnly).Post("/cursos", cfg.MatriculaHandler.CreateCurso)
				r.Get("/cursos", cfg.MatriculaHandler.ListCursos)
				r.Get("/cursos/{id}", cfg.MatriculaHandler.GetCurso)
			})
		})
	})

	return r
}
