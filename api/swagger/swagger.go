package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Shift Ledger API",
        "description": "Timecard submission, client approval, 24 hour auto-approval, disputes and payouts.",
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
        {"name": "Timecards", "description": "Shift submission and approval lifecycle"},
        {"name": "Disputes", "description": "Contested timecards and administrator outcomes"},
        {"name": "Admin", "description": "Operational triggers"}
    ],
    "paths": {
        "/timecards": {
            "get": {
                "tags": ["Timecards"],
                "summary": "List timecards visible to the caller",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "jobCode", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Timecards"],
                "summary": "Submit a timecard",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitTimecardRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed or INVALID_DURATION", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timecards/statement": {
            "get": {
                "tags": ["Timecards"],
                "summary": "Download a weekly statement",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "weekStart", "in": "query", "type": "string", "format": "date", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Statement file", "schema": {"type": "file"}}
                }
            }
        },
        "/timecards/{id}": {
            "get": {
                "tags": ["Timecards"],
                "summary": "Get a timecard",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timecards/{id}/earnings": {
            "get": {
                "tags": ["Timecards"],
                "summary": "Earnings breakdown for a timecard",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timecards/{id}/approve": {
            "post": {
                "tags": ["Timecards"],
                "summary": "Approve a submitted timecard (client)",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timecards/{id}/reject": {
            "post": {
                "tags": ["Timecards"],
                "summary": "Reject a submitted timecard (client)",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectTimecardRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timecards/{id}/pay": {
            "post": {
                "tags": ["Timecards"],
                "summary": "Pay an approved timecard (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/PayTimecardRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "INVALID_STATE", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Payout gateway unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timecards/{id}/disputes": {
            "post": {
                "tags": ["Disputes"],
                "summary": "Open a dispute on a timecard",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OpenDisputeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Dispute exists or timecard paid", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/disputes": {
            "get": {
                "tags": ["Disputes"],
                "summary": "List disputes",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "timecardId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/disputes/{id}": {
            "get": {
                "tags": ["Disputes"],
                "summary": "Get a dispute with its timecard",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/disputes/{id}/evidence": {
            "post": {
                "tags": ["Disputes"],
                "summary": "Submit evidence for an open dispute",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DisputeEvidenceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/disputes/{id}/resolve": {
            "post": {
                "tags": ["Disputes"],
                "summary": "Resolve a dispute (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveDisputeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already resolved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/auto-approvals/sweep": {
            "post": {
                "tags": ["Admin"],
                "summary": "Run the auto-approval sweep now",
                "responses": {
                    "200": {"description": "Sweep summary", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/payouts/run": {
            "post": {
                "tags": ["Admin"],
                "summary": "Queue payouts for approved, unpaid timecards",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SubmitTimecardRequest": {
            "type": "object",
            "properties": {
                "clientId": {"type": "string"},
                "jobCode": {"type": "string"},
                "shiftDate": {"type": "string", "format": "date"},
                "startTime": {"type": "string", "example": "08:07"},
                "endTime": {"type": "string", "example": "16:53"},
                "isOvernight": {"type": "boolean"},
                "breakMinutes": {"type": "integer"},
                "hourlyRate": {"type": "string", "example": "42.50"},
                "notes": {"type": "string"},
                "weekStartDate": {"type": "string", "format": "date"},
                "weekEndDate": {"type": "string", "format": "date"}
            },
            "required": ["clientId", "jobCode", "shiftDate", "startTime", "endTime", "hourlyRate"]
        },
        "RejectTimecardRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            },
            "required": ["reason"]
        },
        "PayTimecardRequest": {
            "type": "object",
            "properties": {
                "reference": {"type": "string"}
            }
        },
        "OpenDisputeRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"},
                "evidence": {"type": "string"}
            },
            "required": ["reason"]
        },
        "DisputeEvidenceRequest": {
            "type": "object",
            "properties": {
                "evidence": {"type": "string"}
            },
            "required": ["evidence"]
        },
        "ResolveDisputeRequest": {
            "type": "object",
            "properties": {
                "resolution": {"type": "string", "enum": ["APPROVE_TIMECARD", "DENY_TIMECARD", "PARTIAL_APPROVAL"]},
                "adminNotes": {"type": "string"},
                "adjustedHours": {"type": "number"}
            },
            "required": ["resolution"]
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
