// Package apidocs describes the HTTP API as an OpenAPI 3 document.
package apidocs

import (
	"net/http"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

type Document struct {
	OpenAPI    string              `yaml:"openapi"`
	Info       Info                `yaml:"info"`
	Paths      map[string]PathItem `yaml:"paths"`
	Components Components          `yaml:"components"`
}

type Info struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

// PathItem maps a lower-case HTTP method to its operation.
type PathItem map[string]Operation

type Operation struct {
	Summary     string              `yaml:"summary"`
	Tags        []string            `yaml:"tags,omitempty"`
	Parameters  []Parameter         `yaml:"parameters,omitempty"`
	RequestBody *RequestBody        `yaml:"requestBody,omitempty"`
	Responses   map[string]Response `yaml:"responses"`
}

type Parameter struct {
	Name     string  `yaml:"name"`
	In       string  `yaml:"in"`
	Required bool    `yaml:"required"`
	Schema   *Schema `yaml:"schema"`
}

type RequestBody struct {
	Required bool                 `yaml:"required"`
	Content  map[string]MediaType `yaml:"content"`
}

type Response struct {
	Description string               `yaml:"description"`
	Content     map[string]MediaType `yaml:"content,omitempty"`
}

type MediaType struct {
	Schema *Schema `yaml:"schema"`
}

type Schema struct {
	Ref        string             `yaml:"$ref,omitempty"`
	Type       string             `yaml:"type,omitempty"`
	Format     string             `yaml:"format,omitempty"`
	Nullable   bool               `yaml:"nullable,omitempty"`
	Required   []string           `yaml:"required,omitempty"`
	Properties map[string]*Schema `yaml:"properties,omitempty"`
	Items      *Schema            `yaml:"items,omitempty"`
}

type Components struct {
	Schemas map[string]*Schema `yaml:"schemas"`
}

const jsonType = "application/json"

func ref(name string) *Schema {
	return &Schema{Ref: "#/components/schemas/" + name}
}

func jsonContent(s *Schema) map[string]MediaType {
	return map[string]MediaType{jsonType: {Schema: s}}
}

func errorResponse(description string) Response {
	return Response{Description: description, Content: jsonContent(ref("Error"))}
}

var idParam = Parameter{
	Name:     "id",
	In:       "path",
	Required: true,
	Schema:   &Schema{Type: "integer", Format: "int64"},
}

// Build returns the document for the tasks API.
func Build(version string) *Document {
	tags := []string{"Tasks"}
	unavailable := errorResponse("Database unavailable")

	return &Document{
		OpenAPI: "3.0.3",
		Info:    Info{Title: "Tasks API", Version: version},
		Paths: map[string]PathItem{
			"/": {
				"get": {
					Summary: "Service status",
					Responses: map[string]Response{
						"200": {
							Description: "Plain-text status line",
							Content:     map[string]MediaType{"text/plain": {Schema: &Schema{Type: "string"}}},
						},
					},
				},
			},
			"/tasks": {
				"get": {
					Summary: "List tasks in id order",
					Tags:    tags,
					Responses: map[string]Response{
						"200": {Description: "All tasks", Content: jsonContent(&Schema{Type: "array", Items: ref("Task")})},
						"503": unavailable,
					},
				},
				"post": {
					Summary:     "Create a task",
					Tags:        tags,
					RequestBody: &RequestBody{Required: true, Content: jsonContent(ref("NewTask"))},
					Responses: map[string]Response{
						"201": {Description: "Task created", Content: jsonContent(ref("Task"))},
						"400": errorResponse("text is missing"),
						"503": unavailable,
					},
				},
			},
			"/tasks/{id}": {
				"get": {
					Summary:    "Get a task by id",
					Tags:       tags,
					Parameters: []Parameter{idParam},
					Responses: map[string]Response{
						"200": {Description: "The task", Content: jsonContent(ref("Task"))},
						"404": errorResponse("Task not found"),
						"503": unavailable,
					},
				},
				"patch": {
					Summary:     "Update only the supplied fields of a task",
					Tags:        tags,
					Parameters:  []Parameter{idParam},
					RequestBody: &RequestBody{Required: true, Content: jsonContent(ref("TaskPatch"))},
					Responses: map[string]Response{
						"200": {Description: "The updated task", Content: jsonContent(ref("Task"))},
						"400": errorResponse("Empty body or no fields to update"),
						"404": errorResponse("Task not found"),
						"503": unavailable,
					},
				},
				"delete": {
					Summary:    "Delete a task",
					Tags:       tags,
					Parameters: []Parameter{idParam},
					Responses: map[string]Response{
						"204": {Description: "Task deleted"},
						"404": errorResponse("Task not found"),
						"503": unavailable,
					},
				},
			},
		},
		Components: Components{
			Schemas: map[string]*Schema{
				"Task": {
					Type:     "object",
					Required: []string{"id", "text", "done", "description"},
					Properties: map[string]*Schema{
						"id":          {Type: "integer", Format: "int64"},
						"text":        {Type: "string"},
						"done":        {Type: "boolean"},
						"description": {Type: "string", Nullable: true},
					},
				},
				"NewTask": {
					Type:     "object",
					Required: []string{"text"},
					Properties: map[string]*Schema{
						"text":        {Type: "string"},
						"description": {Type: "string", Nullable: true},
					},
				},
				"TaskPatch": {
					Type: "object",
					Properties: map[string]*Schema{
						"text":        {Type: "string"},
						"done":        {Type: "boolean"},
						"description": {Type: "string", Nullable: true},
					},
				},
				"Error": {
					Type:     "object",
					Required: []string{"error"},
					Properties: map[string]*Schema{
						"error": {Type: "string"},
					},
				},
			},
		},
	}
}

// Handler serves the document as YAML.
func Handler(version string) (http.Handler, error) {
	data, err := yaml.Marshal(Build(version))
	if err != nil {
		return nil, errors.Wrap(err, "failed to render OpenAPI document")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(data)
	}), nil
}
