package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/atvirokodosprendimai/credschema/internal/core/domain"
	"github.com/atvirokodosprendimai/credschema/internal/core/usecase"
	"github.com/go-chi/chi/v5"
)

type ctxKey string

const (
	timeFormat            = "2006-01-02T15:04:05.999999999Z07:00"
	tenantIDCtxKey ctxKey = "tenant_id"
	apiActorCtxKey ctxKey = "api_actor"
	maxBodySize           = 1 << 20
)

type Handler struct {
	schemaService     *usecase.SchemaService
	validationService *usecase.ValidationService
	authService       *usecase.AuthService
	auditService      *usecase.AuditService
}

func NewHandler(schemaService *usecase.SchemaService, validationService *usecase.ValidationService, authService *usecase.AuthService, auditService *usecase.AuditService) *Handler {
	return &Handler{
		schemaService:     schemaService,
		validationService: validationService,
		authService:       authService,
		auditService:      auditService,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)
		pr.Get("/v1/schemas", h.listSchemas)
		pr.Put("/v1/schemas/{schemaID}", h.registerSchema)
		pr.Get("/v1/schemas/{schemaID}", h.getSchema)
		pr.Delete("/v1/schemas/{schemaID}", h.deleteSchema)
		pr.Get("/v1/schemas/{schemaID}/defaults", h.schemaDefaults)
		pr.Post("/v1/schemas/{schemaID}:validate", h.validateRecord)
		pr.Post("/v1/schemas/{schemaID}:fill", h.fillRecord)
		pr.Get("/v1/audit", h.listAudit)
	})

	return r
}

type schemaResponse struct {
	SchemaID   string          `json:"schema_id"`
	Provider   string          `json:"provider"`
	SchemaType string          `json:"schema_type"`
	Document   json.RawMessage `json:"document"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

func (h *Handler) registerSchema(w http.ResponseWriter, r *http.Request) {
	schemaID := chi.URLParam(r, "schemaID")
	tenantID := tenantIDFromContext(r.Context())
	actor := actorFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	rec, err := h.schemaService.Register(r.Context(), tenantID, schemaID, raw, actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSchemaResponse(rec))
}

func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	schemaID := chi.URLParam(r, "schemaID")
	tenantID := tenantIDFromContext(r.Context())

	rec, err := h.schemaService.Get(r.Context(), tenantID, schemaID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSchemaResponse(rec))
}

func (h *Handler) deleteSchema(w http.ResponseWriter, r *http.Request) {
	schemaID := chi.URLParam(r, "schemaID")
	tenantID := tenantIDFromContext(r.Context())
	actor := actorFromContext(r.Context())

	deleted, err := h.schemaService.Delete(r.Context(), tenantID, schemaID, actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromContext(r.Context())

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	filter := domain.SchemaListFilter{
		Provider: r.URL.Query().Get("provider"),
		AfterID:  r.URL.Query().Get("after"),
		Limit:    limit,
	}
	if raw := r.URL.Query().Get("schema_type"); raw != "" {
		schemaType, err := domain.ParseSchemaType(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.SchemaType = schemaType
	}

	records, err := h.schemaService.List(r.Context(), tenantID, filter)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]schemaResponse, 0, len(records))
	for _, rec := range records {
		result = append(result, toSchemaResponse(rec))
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) validateRecord(w http.ResponseWriter, r *http.Request) {
	schemaID := chi.URLParam(r, "schemaID")
	tenantID := tenantIDFromContext(r.Context())
	actor := actorFromContext(r.Context())

	record, ok := h.readRecordBody(w, r)
	if !ok {
		return
	}

	result, err := h.validationService.Validate(r.Context(), tenantID, schemaID, record, actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) fillRecord(w http.ResponseWriter, r *http.Request) {
	schemaID := chi.URLParam(r, "schemaID")
	tenantID := tenantIDFromContext(r.Context())
	actor := actorFromContext(r.Context())

	record, ok := h.readRecordBody(w, r)
	if !ok {
		return
	}

	filled, result, err := h.validationService.Fill(r.Context(), tenantID, schemaID, record, actor)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	if !result.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "record": filled})
}

func (h *Handler) schemaDefaults(w http.ResponseWriter, r *http.Request) {
	schemaID := chi.URLParam(r, "schemaID")
	tenantID := tenantIDFromContext(r.Context())

	defaults, err := h.validationService.Defaults(r.Context(), tenantID, schemaID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"defaults": defaults})
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromContext(r.Context())

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	afterID := int64(0)
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be integer")
			return
		}
		afterID = parsed
	}

	entries, err := h.auditService.List(r.Context(), domain.ValidationAuditFilter{
		TenantID:   tenantID,
		SchemaID:   r.URL.Query().Get("schema_id"),
		OnlyFailed: r.URL.Query().Get("failed") == "true",
		AfterID:    afterID,
		Limit:      limit,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

// readRecordBody decodes the request body as a single JSON value to be
// checked as a candidate record. Trailing tokens are rejected.
func (h *Handler) readRecordBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	decoder := json.NewDecoder(r.Body)
	var record json.RawMessage
	if err := decoder.Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	return record, true
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		apiKey, err := h.authService.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), tenantIDCtxKey, apiKey.TenantID)
		ctx = context.WithValue(ctx, apiActorCtxKey, apiKey.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func toSchemaResponse(rec domain.SchemaRecord) schemaResponse {
	return schemaResponse{
		SchemaID:   rec.SchemaID,
		Provider:   rec.Provider,
		SchemaType: string(rec.SchemaType),
		Document:   rec.Document,
		CreatedAt:  rec.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:  rec.UpdatedAt.UTC().Format(timeFormat),
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	var malformed *domain.ErrMalformedSchema
	switch {
	case errors.As(err, &malformed):
		writeError(w, http.StatusBadRequest, malformed.Error())
	case errors.Is(err, domain.ErrInvalidSchemaID), errors.Is(err, domain.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func tenantIDFromContext(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantIDCtxKey).(string)
	return tenant
}

func actorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(apiActorCtxKey).(string)
	if actor == "" {
		return "api"
	}
	return actor
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "credschema",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/schemas": map[string]any{
				"get": map[string]any{"summary": "List schema documents"},
			},
			"/v1/schemas/{schema_id}": map[string]any{
				"put":    map[string]any{"summary": "Register schema document"},
				"get":    map[string]any{"summary": "Get schema document"},
				"delete": map[string]any{"summary": "Delete schema document"},
			},
			"/v1/schemas/{schema_id}/defaults": map[string]any{
				"get": map[string]any{"summary": "Schema defaults for form pre-fill"},
			},
			"/v1/schemas/{schema_id}:validate": map[string]any{
				"post": map[string]any{"summary": "Validate a record against a schema"},
			},
			"/v1/schemas/{schema_id}:fill": map[string]any{
				"post": map[string]any{"summary": "Validate and populate generated fields"},
			},
			"/v1/audit": map[string]any{
				"get": map[string]any{"summary": "List validation audit entries"},
			},
		},
	}
}
