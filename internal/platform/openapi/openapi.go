// Package openapi serves an OpenAPI 3.0 description of the patient portal
// API together with a Swagger UI page.
package openapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Operation describes one API route.
type Operation struct {
	Method      string
	Path        string
	OperationID string
	Summary     string
	Tag         string
	// RequestType is the request media type, empty when there is no body.
	RequestType   string
	RequestSchema string
	SuccessStatus string
	SuccessSchema string
	// ErrorStatuses lists the statuses answered with the Error envelope.
	ErrorStatuses []string
}

// Generator builds an OpenAPI 3.0 spec from a list of operations.
type Generator struct {
	ops     []Operation
	version string
	baseURL string
}

// NewGenerator creates a generator over the portal operations.
func NewGenerator(version, baseURL string) *Generator {
	return &Generator{ops: PortalOperations(), version: version, baseURL: baseURL}
}

// PortalOperations returns the intake, retrieval and chat routes.
func PortalOperations() []Operation {
	const multipart = "multipart/form-data"
	const jsonType = "application/json"
	return []Operation{
		{
			Method: http.MethodPost, Path: "/api/upload-prescription", OperationID: "uploadPrescription",
			Summary: "Upload a prescription image or PDF", Tag: "Prescriptions",
			RequestType: multipart, RequestSchema: "PrescriptionUpload",
			SuccessStatus: "200", SuccessSchema: "PrescriptionUploaded",
			ErrorStatuses: []string{"400", "413", "500"},
		},
		{
			Method: http.MethodGet, Path: "/api/prescriptions", OperationID: "listPrescriptions",
			Summary: "List prescriptions, newest first", Tag: "Prescriptions",
			SuccessStatus: "200", SuccessSchema: "PrescriptionList",
			ErrorStatuses: []string{"500"},
		},
		{
			Method: http.MethodPost, Path: "/api/upload-health-record", OperationID: "uploadHealthRecord",
			Summary: "Upload a health record image or PDF", Tag: "Health Records",
			RequestType: multipart, RequestSchema: "HealthRecordUpload",
			SuccessStatus: "200", SuccessSchema: "HealthRecordUploaded",
			ErrorStatuses: []string{"400", "413", "500"},
		},
		{
			Method: http.MethodGet, Path: "/api/health-records", OperationID: "listHealthRecords",
			Summary: "List health records, newest first", Tag: "Health Records",
			SuccessStatus: "200", SuccessSchema: "HealthRecordList",
			ErrorStatuses: []string{"500"},
		},
		{
			Method: http.MethodPost, Path: "/api/consultations", OperationID: "createConsultation",
			Summary: "Submit a consultation request", Tag: "Consultations",
			RequestType: jsonType, RequestSchema: "ConsultationRequest",
			SuccessStatus: "201", SuccessSchema: "ConsultationCreated",
			ErrorStatuses: []string{"400", "500"},
		},
		{
			Method: http.MethodGet, Path: "/api/consultations", OperationID: "listConsultations",
			Summary: "List consultation requests, newest first", Tag: "Consultations",
			SuccessStatus: "200", SuccessSchema: "ConsultationList",
			ErrorStatuses: []string{"500"},
		},
		{
			Method: http.MethodPost, Path: "/api/chatbot", OperationID: "askAssistant",
			Summary: "Ask the medical assistant a question", Tag: "Assistant",
			RequestType: jsonType, RequestSchema: "ChatRequest",
			SuccessStatus: "200", SuccessSchema: "ChatResponse",
			ErrorStatuses: []string{"400", "429"},
		},
	}
}

var errorDescriptions = map[string]string{
	"400": "Invalid input",
	"413": "File too large",
	"429": "Too many requests",
	"500": "Storage unavailable",
}

// GenerateSpec produces the OpenAPI 3.0 spec as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := make(map[string]interface{})
	for _, op := range g.ops {
		item, _ := paths[op.Path].(map[string]interface{})
		if item == nil {
			item = make(map[string]interface{})
			paths[op.Path] = item
		}
		item[strings.ToLower(op.Method)] = g.buildOperation(op)
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "Telemeds Patient Portal API",
			"version":     g.version,
			"description": "Document intake, retrieval and medical assistant API",
		},
		"servers": []map[string]string{
			{"url": g.baseURL},
		},
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": buildComponentSchemas(),
		},
	}
}

func (g *Generator) buildOperation(op Operation) map[string]interface{} {
	responses := map[string]interface{}{
		op.SuccessStatus: buildResponseWithSchema("Success", "#/components/schemas/"+op.SuccessSchema),
	}
	for _, status := range op.ErrorStatuses {
		responses[status] = buildResponseWithSchema(errorDescriptions[status], "#/components/schemas/Error")
	}

	out := map[string]interface{}{
		"summary":     op.Summary,
		"operationId": op.OperationID,
		"tags":        []string{op.Tag},
		"responses":   responses,
	}
	if op.RequestType != "" {
		out["requestBody"] = map[string]interface{}{
			"required": true,
			"content": map[string]interface{}{
				op.RequestType: map[string]interface{}{
					"schema": map[string]interface{}{"$ref": "#/components/schemas/" + op.RequestSchema},
				},
			},
		}
	}
	return out
}

// buildResponseWithSchema creates an OpenAPI response with content schema reference.
func buildResponseWithSchema(description, schemaRef string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{"$ref": schemaRef},
			},
		},
	}
}

func str() map[string]interface{} { return map[string]interface{}{"type": "string"} }

func strFormat(format string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "format": format}
}

func strEnum(values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "enum": values}
}

func object(required []string, props map[string]interface{}) map[string]interface{} {
	o := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		o["required"] = required
	}
	return o
}

func arrayOf(schema string) map[string]interface{} {
	return map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"$ref": "#/components/schemas/" + schema},
	}
}

func buildComponentSchemas() map[string]interface{} {
	return map[string]interface{}{
		"Error": object([]string{"error", "kind", "code"}, map[string]interface{}{
			"error": str(),
			"kind":  strEnum("validation", "resource_limit", "persistence", "external", "configuration"),
			"code":  str(),
		}),
		"Prescription": object(nil, map[string]interface{}{
			"id":           strFormat("uuid"),
			"patientName":  str(),
			"patientEmail": str(),
			"fileName":     str(),
			"filePath":     str(),
			"uploadDate":   strFormat("date-time"),
			"status":       strEnum("pending", "verified", "rejected"),
		}),
		"HealthRecord": object(nil, map[string]interface{}{
			"id":           strFormat("uuid"),
			"patientEmail": str(),
			"fileName":     str(),
			"filePath":     str(),
			"fileType":     str(),
			"fileSize":     map[string]interface{}{"type": "integer", "format": "int64", "minimum": 0},
			"category":     str(),
			"uploadDate":   strFormat("date-time"),
		}),
		"Consultation": object(nil, map[string]interface{}{
			"id":               strFormat("uuid"),
			"patientName":      str(),
			"patientAge":       map[string]interface{}{"type": "integer", "minimum": 1},
			"patientEmail":     strFormat("email"),
			"patientGender":    str(),
			"patientDob":       strFormat("date"),
			"patientCondition": str(),
			"submissionDate":   strFormat("date-time"),
			"status":           strEnum("pending", "scheduled", "completed"),
		}),
		"PrescriptionList": arrayOf("Prescription"),
		"HealthRecordList": arrayOf("HealthRecord"),
		"ConsultationList": arrayOf("Consultation"),
		"PrescriptionUpload": object([]string{"prescription"}, map[string]interface{}{
			"prescription": strFormat("binary"),
			"patientName":  str(),
			"patientEmail": str(),
		}),
		"HealthRecordUpload": object([]string{"healthRecord"}, map[string]interface{}{
			"healthRecord": strFormat("binary"),
			"patientEmail": str(),
			"category":     str(),
		}),
		"ConsultationRequest": object(
			[]string{"patientName", "patientAge", "patientEmail", "patientGender", "patientDob", "patientCondition"},
			map[string]interface{}{
				"patientName":      str(),
				"patientAge":       map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 150},
				"patientEmail":     strFormat("email"),
				"patientGender":    str(),
				"patientDob":       strFormat("date"),
				"patientCondition": str(),
			}),
		"PrescriptionUploaded": object(nil, map[string]interface{}{
			"message":        str(),
			"prescriptionId": strFormat("uuid"),
			"fileName":       str(),
		}),
		"HealthRecordUploaded": object(nil, map[string]interface{}{
			"message":  str(),
			"recordId": strFormat("uuid"),
			"fileName": str(),
		}),
		"ConsultationCreated": object(nil, map[string]interface{}{
			"message":        str(),
			"consultationId": strFormat("uuid"),
		}),
		"ChatRequest":  object([]string{"message"}, map[string]interface{}{"message": str()}),
		"ChatResponse": object([]string{"response"}, map[string]interface{}{"response": str()}),
	}
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Telemeds Patient Portal API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
  <style>
    html { box-sizing: border-box; overflow-y: scroll; }
    *, *:before, *:after { box-sizing: inherit; }
    body { margin: 0; background: #fafafa; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [
        SwaggerUIBundle.presets.apis,
        SwaggerUIBundle.SwaggerUIStandalonePreset
      ],
      layout: "BaseLayout"
    })
  </script>
</body>
</html>`

// RegisterRoutes registers the OpenAPI endpoints.
func (g *Generator) RegisterRoutes(apiGroup *echo.Group) {
	apiGroup.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
	apiGroup.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}
