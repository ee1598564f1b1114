// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "schemes": {{ marshal .Schemes }},
  "swagger": "2.0",
  "info": {"description": "{{escape .Description}}", "title": "{{.Title}}", "contact": {}, "version": "{{.Version}}"},
  "host": "{{.Host}}",
  "basePath": "{{.BasePath}}",
  "paths": {
    "/payments/events": {
      "post": {"tags": ["payments"], "summary": "Ingest a payment.failed or payment.succeeded event", "produces": ["application/json"], "responses": {"201": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}, {"WebhookKey": []}], "consumes": ["application/json"], "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]}
    },
    "/payments/signals": {
      "post": {"tags": ["payments"], "summary": "Apply an eligibility signal to open retry schedules", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}, {"WebhookKey": []}], "consumes": ["application/json"], "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]}
    },
    "/suspensions/non-payment": {
      "post": {"tags": ["suspensions"], "summary": "Suspend or restore a subscription for non-payment", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "consumes": ["application/json"], "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]}
    },
    "/routing/rules": {
      "get": {"tags": ["routing"], "summary": "List routing rules", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}]},
      "post": {"tags": ["routing"], "summary": "Create a routing rule", "produces": ["application/json"], "responses": {"201": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "consumes": ["application/json"], "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]}
    },
    "/routing/rules/{id}": {
      "put": {"tags": ["routing"], "summary": "Update a routing rule", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "consumes": ["application/json"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]},
      "delete": {"tags": ["routing"], "summary": "Delete a routing rule", "produces": ["application/json"], "responses": {"204": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}]}
    },
    "/routing/overrides/{scope}/{scope_id}": {
      "put": {"tags": ["routing"], "summary": "Pin a provider account for a client or contract", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "consumes": ["application/json"], "parameters": [{"type": "string", "name": "scope", "in": "path", "required": true}, {"type": "string", "name": "scope_id", "in": "path", "required": true}, {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]},
      "delete": {"tags": ["routing"], "summary": "Remove a provider override", "produces": ["application/json"], "responses": {"204": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "scope", "in": "path", "required": true}, {"type": "string", "name": "scope_id", "in": "path", "required": true}]}
    },
    "/routing/test": {
      "post": {"tags": ["routing"], "summary": "Evaluate routing without recording a decision", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "consumes": ["application/json"], "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]}
    },
    "/retry-schedules/{id}": {
      "get": {"tags": ["retry"], "summary": "Get a retry schedule", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}]}
    },
    "/retry-schedules/{id}/attempts": {
      "post": {"tags": ["retry"], "summary": "Record the outcome of a retry attempt", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "consumes": ["application/json"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]}
    },
    "/retry-schedules/{id}/cancel": {
      "post": {"tags": ["retry"], "summary": "Resolve a retry schedule manually", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "consumes": ["application/json"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]}
    },
    "/dunning-runs/{id}": {
      "get": {"tags": ["dunning"], "summary": "Get a dunning run", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}]}
    },
    "/dunning-runs/{id}/cancel": {
      "post": {"tags": ["dunning"], "summary": "Cancel a dunning run", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "consumes": ["application/json"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]}
    },
    "/payment-links/{token}/redeem": {
      "post": {"tags": ["dunning"], "summary": "Redeem a payment link", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}}, "parameters": [{"type": "string", "name": "token", "in": "path", "required": true}]}
    },
    "/retry-policies": {
      "get": {"tags": ["policies"], "summary": "List retry policies", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}]},
      "put": {"tags": ["policies"], "summary": "Create or replace a retry policy", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "consumes": ["application/json"], "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]}
    },
    "/retry-policies/resolve": {
      "get": {"tags": ["policies"], "summary": "Resolve the retry policy applying to a payment", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}]}
    },
    "/dunning-configs": {
      "get": {"tags": ["policies"], "summary": "List dunning configurations", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}]},
      "put": {"tags": ["policies"], "summary": "Create or replace a dunning configuration", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "consumes": ["application/json"], "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]}
    },
    "/service-bundles": {
      "get": {"tags": ["policies"], "summary": "List service bundles", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}]},
      "put": {"tags": ["policies"], "summary": "Create or replace a service bundle", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "consumes": ["application/json"], "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}]}
    },
    "/alerts": {
      "get": {"tags": ["ledger"], "summary": "List operator alerts", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}]}
    },
    "/audit/{entity_type}/{id}": {
      "get": {"tags": ["ledger"], "summary": "Audit trail of an entity", "produces": ["application/json"], "responses": {"200": {"$ref": "#/responses/OK"}, "400": {"$ref": "#/responses/Error"}, "401": {"$ref": "#/responses/Error"}}, "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "entity_type", "in": "path", "required": true}, {"type": "string", "name": "id", "in": "path", "required": true}]}
    }
  },
  "responses": {
    "OK": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}},
    "Error": {"description": "Error", "schema": {"$ref": "#/definitions/APIResponse"}}
  },
  "definitions": {
    "APIResponse": {"type": "object", "properties": {"success": {"type": "boolean"}, "data": {}, "message": {"type": "string"}, "error": {"$ref": "#/definitions/ErrorInfo"}}},
    "ErrorInfo": {"type": "object", "properties": {"type": {"type": "string"}, "message": {"type": "string"}, "details": {"type": "string"}}}
  },
  "securityDefinitions": {
    "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
    "WebhookKey": {"type": "apiKey", "name": "X-Webhook-Key", "in": "header"}
  }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "dev",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "payops API",
	Description:      "Payment routing, retry scheduling and dunning.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
