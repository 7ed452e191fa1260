package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"

	"github.com/voronkovm/diagramflow/api"
)

// newOpenAPIValidator loads the embedded contract, verifies it and returns a
// middleware that rejects requests the contract does not allow, plus the
// document rendered as JSON for /openapi.json.
func newOpenAPIValidator(logger *slog.Logger) (func(http.Handler) http.Handler, []byte, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(api.SpecYAML)
	if err != nil {
		return nil, nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("validate openapi document: %w", err)
	}
	specJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("render openapi document: %w", err)
	}
	matcher, err := legacyrouter.NewRouter(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("build openapi route matcher: %w", err)
	}

	logger.Info("openapi contract loaded", slog.Int("paths", doc.Paths.Len()))

	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := matcher.FindRoute(r)
			if err != nil {
				// Paths outside the contract fall through to the mux, which
				// answers 404 or 405 on its own.
				next.ServeHTTP(w, r)
				return
			}

			options := &openapi3filter.Options{}
			if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
				// Uploads are streamed by the handler; validating the body
				// here would buffer the whole file.
				options.ExcludeRequestBody = true
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    options,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	return middleware, specJSON, nil
}
