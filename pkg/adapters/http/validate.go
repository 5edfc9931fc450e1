package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	"github.com/UTNuclearRobotics/skiros2/api"
)

// MaxBodyBytes bounds the size of a request body.
const MaxBodyBytes = 1 << 20

func newRouter() (routers.Router, error) {
	doc, err := api.Load(context.Background())
	if err != nil {
		return nil, err
	}
	return legacy.NewRouter(doc)
}

// validate rejects requests that do not match the API description. Paths
// the description does not cover, such as /metrics, pass through.
func (s *Server) validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		}
		route, params, err := s.router.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			s.writeError(w, status, fmt.Errorf("invalid request: %w", err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) apiSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(api.Spec()); err != nil {
		s.logger.Error("api description write failed", "err", err)
	}
}
