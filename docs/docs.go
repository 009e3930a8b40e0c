// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with `swag init -g cmd/cloudpulse/main.go` after changing
// handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {"tags": ["Health"], "summary": "Service health", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/health/ready": {
            "get": {"tags": ["Health"], "summary": "Readiness probe", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/health/live": {
            "get": {"tags": ["Health"], "summary": "Liveness probe", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/auth/register": {
            "post": {"tags": ["Auth"], "summary": "Register an account", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.RegisterRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.LoginResponse"}},
                    "400": {"description": "Invalid input"}, "409": {"description": "Username already taken"}}}
        },
        "/auth/login": {
            "post": {"tags": ["Auth"], "summary": "Sign in", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.LoginRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LoginResponse"}},
                    "401": {"description": "Invalid credentials"}}}
        },
        "/auth/logout": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Auth"], "summary": "Sign out",
                "responses": {"200": {"description": "OK"}}}
        },
        "/dashboard": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Dashboard"], "summary": "Dashboard overview",
                "responses": {"200": {"description": "OK"}, "500": {"description": "Internal Server Error"}}}
        },
        "/anomalies": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Anomalies"], "summary": "List anomalies",
                "parameters": [
                    {"type": "string", "description": "Minimum severity (LOW, MEDIUM, HIGH)", "name": "severity", "in": "query"},
                    {"type": "integer", "description": "Maximum rows", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid severity"}}}
        },
        "/forecast": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Forecast"], "summary": "Cost forecast",
                "responses": {"200": {"description": "OK"}}}
        },
        "/recommendations": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Recommendations"], "summary": "Savings recommendations",
                "responses": {"200": {"description": "OK"}}}
        },
        "/live/update": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Live"], "summary": "Append a live hour",
                "parameters": [{"type": "boolean", "description": "Force a one-shot spike", "name": "force", "in": "query"}],
                "responses": {"200": {"description": "OK"}, "500": {"description": "Internal Server Error"}}}
        },
        "/anomaly/force": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Live"], "summary": "Start spike injection",
                "description": "Turns spike injection on and appends one spiked hour right away",
                "responses": {"200": {"description": "Flag state and the anomalies the spike produced"}, "500": {"description": "Internal server error"}}}
        },
        "/anomaly/solve": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Live"], "summary": "Stop spike injection",
                "responses": {"200": {"description": "OK"}}}
        },
        "/profile": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Profile"], "summary": "Current profile",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ProfileResponse"}}, "404": {"description": "User not found"}}}
        },
        "/profile/emails": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["Profile"], "summary": "Replace notification emails", "consumes": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateEmailsRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid address"}}}
        }
    },
    "definitions": {
        "handlers.LoginRequest": {
            "type": "object", "required": ["password", "username"],
            "properties": {"username": {"type": "string", "example": "alice"}, "password": {"type": "string"}}
        },
        "handlers.RegisterRequest": {
            "type": "object", "required": ["confirm_password", "password", "username"],
            "properties": {
                "username": {"type": "string", "example": "alice"},
                "email": {"type": "string", "example": "alice@example.com"},
                "password": {"type": "string"},
                "confirm_password": {"type": "string"}
            }
        },
        "handlers.LoginResponse": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "expires_in": {"type": "integer", "example": 86400}, "username": {"type": "string"}}
        },
        "handlers.ProfileResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "notification_emails": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handlers.UpdateEmailsRequest": {
            "type": "object",
            "properties": {"emails": {"type": "array", "items": {"type": "string"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "CloudPulse API",
	Description:      "Cloud cost anomaly detection, forecasting and live simulation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
