package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"tagset/internal/delivery/http/controllers"
	"tagset/internal/delivery/http/helpers"
	"tagset/internal/delivery/http/middleware"
	"tagset/internal/domain"
)

// NewRouter registers every route. Reads are public; writes need a Bearer token.
func NewRouter(tags *controllers.TagSetController, verifier domain.TokenVerifier, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(verifier, logger)

	// Allow-lists
	mux.HandleFunc("GET /fields/{kind}/{field}/tags", tags.ListAllowedTags)
	mux.HandleFunc("POST /fields/{kind}/{field}/tags", auth(tags.CreateAllowedTag))
	mux.HandleFunc("PATCH /fields/{kind}/{field}/tags/{code}", auth(tags.RelabelAllowedTag))
	mux.HandleFunc("DELETE /fields/{kind}/{field}/tags/{code}", auth(tags.DeleteAllowedTag))
	mux.HandleFunc("GET /fields/{kind}/{field}/lookup", tags.LookupLabel)
	mux.HandleFunc("POST /fields/{kind}/{field}/check", tags.CheckTags)

	// Object values
	mux.HandleFunc("GET /objects/{kind}/{objectID}/tags/{field}", tags.GetObjectTags)
	mux.HandleFunc("PUT /objects/{kind}/{objectID}/tags/{field}", auth(tags.ReplaceObjectTags))
	mux.HandleFunc("POST /objects/{kind}/{objectID}/tags/{field}/delta", auth(tags.ApplyObjectDelta))
	mux.HandleFunc("POST /objects/{kind}/{objectID}/tags/{field}/merge", auth(tags.MergeObjectTags))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

// NewHandler wraps the router in the middleware chain: request id, then logging, then CORS.
func NewHandler(mux http.Handler, logger *slog.Logger, allowedOrigins []string) http.Handler {
	return middleware.RequestID(middleware.LoggingMiddleware(logger, middleware.CORS(allowedOrigins, mux)))
}
