package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TMS Calendar API",
        "description": "Dispatch calendar: event store, range/layout engine and window exports",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Events", "description": "Scheduled job occurrences"},
        {"name": "Calendar", "description": "Computed windows and exports"},
        {"name": "Ops", "description": "Health and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Ops"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Ops"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Ops"],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "Metrics exposition"}
                }
            }
        },
        "/api/v1/events": {
            "get": {
                "tags": ["Events"],
                "summary": "List events intersecting a date range",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string", "description": "Range start (YYYY-MM-DD)"},
                    {"name": "to", "in": "query", "type": "string", "description": "Range end (YYYY-MM-DD)"},
                    {"name": "client_id", "in": "query", "type": "string"},
                    {"name": "driver_id", "in": "query", "type": "string"},
                    {"name": "vehicle_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Matching events", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Events"],
                "summary": "Create event",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failure"}
                }
            }
        },
        "/api/v1/events/{id}": {
            "get": {
                "tags": ["Events"],
                "summary": "Event detail",
                "responses": {
                    "200": {"description": "Event", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "patch": {
                "tags": ["Events"],
                "summary": "Partially update event",
                "responses": {
                    "200": {"description": "Updated event"},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Events"],
                "summary": "Cancel event",
                "responses": {
                    "204": {"description": "Cancelled"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/events/{id}/move": {
            "post": {
                "tags": ["Events"],
                "summary": "Reschedule event (temporal fields only)",
                "responses": {
                    "200": {"description": "Moved event"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/calendar/view": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Computed calendar window",
                "parameters": [
                    {"name": "focus", "in": "query", "type": "string", "description": "Focus date (YYYY-MM-DD)"},
                    {"name": "mode", "in": "query", "type": "string", "description": "day | week | month"},
                    {"name": "direction", "in": "query", "type": "string", "description": "next | previous | today"},
                    {"name": "compact", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "Window, day cells and positioned events"},
                    "400": {"description": "Validation failure"},
                    "503": {"description": "Event store unavailable"}
                }
            }
        },
        "/api/v1/calendar/export": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Export calendar window",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "description": "csv | pdf | ics"},
                    {"name": "focus", "in": "query", "type": "string"},
                    {"name": "mode", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Rendered file"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
