package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// OpenAPIHandler serves the API description as YAML and JSON
type OpenAPIHandler struct {
	yamlDoc []byte
	jsonDoc []byte
}

// NewOpenAPIHandler reads and parses the OpenAPI document at path once, so a
// malformed document fails at startup instead of on request
func NewOpenAPIHandler(path string) (*OpenAPIHandler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI specification: %w", err)
	}
	return newOpenAPIHandler(data)
}

func newOpenAPIHandler(data []byte) (*OpenAPIHandler, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI specification: %w", err)
	}
	if _, ok := doc["openapi"]; !ok {
		return nil, fmt.Errorf("OpenAPI specification has no openapi version field")
	}
	jsonDoc, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert OpenAPI specification to JSON: %w", err)
	}
	return &OpenAPIHandler{yamlDoc: data, jsonDoc: jsonDoc}, nil
}

// RegisterRoutes registers OpenAPI routes
func (h *OpenAPIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/openapi.yaml", h.ServeYAML).Methods("GET")
	r.HandleFunc("/api/v1/openapi.json", h.ServeJSON).Methods("GET")
}

// ServeYAML serves the OpenAPI spec in YAML format
func (h *OpenAPIHandler) ServeYAML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	_, _ = w.Write(h.yamlDoc)
}

// ServeJSON serves the OpenAPI spec in JSON format
func (h *OpenAPIHandler) ServeJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(h.jsonDoc)
}
