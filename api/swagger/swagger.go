package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Hostel Outing API",
        "description": "Outing requests, tiered approvals and QR gate passes for hostel residents",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Outings", "description": "Outing requests and approvals"},
        {"name": "Passes", "description": "QR gate pass issuance"},
        {"name": "Gate", "description": "Security console scans"},
        {"name": "Admin", "description": "Scheduler and metrics"}
    ],
    "paths": {
        "/outings": {
            "get": {
                "tags": ["Outings"],
                "summary": "List outing requests visible to the caller",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "level", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Outings"],
                "summary": "Request an outing",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOutingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/outings/{id}": {
            "get": {
                "tags": ["Outings"],
                "summary": "Get an outing request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/outings/{id}/decision": {
            "post": {
                "tags": ["Outings"],
                "summary": "Approve or deny at the caller's level",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Stage mismatch or already handled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/outings/{id}/pass": {
            "get": {
                "tags": ["Passes"],
                "summary": "Download the printable pass slip",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "direction", "in": "query", "type": "string", "enum": ["outgoing", "incoming"]}
                ],
                "responses": {
                    "200": {"description": "PDF", "schema": {"type": "file"}},
                    "412": {"description": "Not approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/outings/{id}/passes/regenerate": {
            "post": {
                "tags": ["Passes"],
                "summary": "Replace a live pass, invalidating the previous token",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegenerateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/outings/{id}/passes/{direction}": {
            "post": {
                "tags": ["Passes"],
                "summary": "Issue a pass manually",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "direction", "in": "path", "required": true, "type": "string", "enum": ["outgoing", "incoming"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Pass already issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/gate/scan": {
            "post": {
                "tags": ["Gate"],
                "summary": "Record a gate scan",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already scanned", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/gate/validate": {
            "post": {
                "tags": ["Gate"],
                "summary": "Check a pass without consuming it",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/scheduler/tick": {
            "post": {
                "tags": ["Admin"],
                "summary": "Run the incoming-pass tick now",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/scheduler/sweep": {
            "post": {
                "tags": ["Admin"],
                "summary": "Run the daily sweep now",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/students/{id}/cache": {
            "delete": {
                "tags": ["Admin"],
                "summary": "Evict a student's cached gate summary",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/admin/metrics": {
            "get": {
                "tags": ["Admin"],
                "summary": "Metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateOutingRequest": {
            "type": "object",
            "properties": {
                "outingDate": {"type": "string", "format": "date"},
                "outTime": {"type": "string", "example": "10:00"},
                "returnDate": {"type": "string", "format": "date"},
                "returnTime": {"type": "string", "example": "18:00"},
                "category": {"type": "string", "enum": ["NORMAL", "EMERGENCY"]},
                "destination": {"type": "string"},
                "purpose": {"type": "string"}
            },
            "required": ["outingDate", "outTime", "returnDate", "returnTime", "destination", "purpose"]
        },
        "DecisionRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["APPROVE", "DENY"]},
                "remarks": {"type": "string"}
            },
            "required": ["decision"]
        },
        "RegenerateRequest": {
            "type": "object",
            "properties": {
                "direction": {"type": "string", "enum": ["outgoing", "incoming"]}
            },
            "required": ["direction"]
        },
        "ScanRequest": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "location": {"type": "string"}
            },
            "required": ["token"]
        },
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
                "meta": {"type": "object"},
                "requestId": {"type": "string"}
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
