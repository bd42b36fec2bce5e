package mcp

import (
	"encoding/json"
	"sort"
	"strings"

	mcplib "github.com/felixgeelhaar/mcp-go"
)

// OpenAPISpec is the subset of an OpenAPI 3.0 document needed to describe
// the tools as POST endpoints.
type OpenAPISpec struct {
	OpenAPI string              `json:"openapi"`
	Info    OpenAPIInfo         `json:"info"`
	Tags    []Tag               `json:"tags,omitempty"`
	Paths   map[string]PathItem `json:"paths"`
}

type OpenAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type PathItem struct {
	Post *Operation `json:"post,omitempty"`
}

type Operation struct {
	OperationID string              `json:"operationId"`
	Summary     string              `json:"summary,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

type RequestBody struct {
	Required bool                 `json:"required"`
	Content  map[string]MediaType `json:"content"`
}

type MediaType struct {
	Schema any `json:"schema"`
}

type Response struct {
	Description string `json:"description"`
}

// Tool groups.
const (
	tagReviews     = "reviews"
	tagEvaluations = "evaluations"
	tagCatalogue   = "catalogue"
)

var tagDescriptions = map[string]string{
	tagReviews:     "Run and read document reviews",
	tagEvaluations: "Score the reviewer against labelled datasets",
	tagCatalogue:   "Check item catalogue",
}

// OpenAPI describes the registered tools as an OpenAPI 3.0 document.
func (s *Server) OpenAPI() ([]byte, error) {
	return GenerateOpenAPI(s.mcpServer)
}

// GenerateOpenAPI maps each tool to POST /tools/{name}. Run tools can fail
// on configuration (422) and lookups on unknown ids (404).
func GenerateOpenAPI(srv *mcplib.Server) ([]byte, error) {
	paths := map[string]PathItem{}
	used := map[string]bool{}
	for _, t := range srv.Tools() {
		tag := toolTag(t.Name)
		used[tag] = true

		op := &Operation{
			OperationID: t.Name,
			Summary:     t.Description,
			Tags:        []string{tag},
			Responses:   toolResponses(t.Name),
		}
		if hasProperties(t.InputSchema) {
			op.RequestBody = &RequestBody{
				Required: true,
				Content:  map[string]MediaType{"application/json": {Schema: t.InputSchema}},
			}
		}
		paths["/tools/"+t.Name] = PathItem{Post: op}
	}

	doc := OpenAPISpec{
		OpenAPI: "3.0.3",
		Info: OpenAPIInfo{
			Title:       "SmartReviewer MCP API",
			Description: "Tools of the SmartReviewer MCP server. Each result is returned as JSON text content.",
			Version:     SchemaVersion,
		},
		Paths: paths,
	}
	for name := range used {
		doc.Tags = append(doc.Tags, Tag{Name: name, Description: tagDescriptions[name]})
	}
	sort.Slice(doc.Tags, func(i, j int) bool { return doc.Tags[i].Name < doc.Tags[j].Name })

	return json.MarshalIndent(doc, "", "  ")
}

func toolTag(name string) string {
	switch {
	case strings.Contains(name, "evaluation"):
		return tagEvaluations
	case strings.Contains(name, "check_item"):
		return tagCatalogue
	default:
		return tagReviews
	}
}

func toolResponses(name string) map[string]Response {
	r := map[string]Response{
		"200": {Description: "Tool result"},
		"500": {Description: "Tool failed"},
	}
	switch {
	case strings.HasPrefix(name, "run_"):
		r["400"] = Response{Description: "Missing document or dataset"}
		r["422"] = Response{Description: "Invalid check item configuration"}
	case strings.HasPrefix(name, "get_"):
		r["404"] = Response{Description: "No stored result with this id"}
	}
	return r
}

// hasProperties reports whether a tool schema declares any input. The
// schema may be a generated *schema.Schema or a plain map.
func hasProperties(schema any) bool {
	if schema == nil {
		return false
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return false
	}
	var s struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return false
	}
	return len(s.Properties) > 0
}
