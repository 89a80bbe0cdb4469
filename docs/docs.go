// Package docs is generated by swaggo/swag from the controller annotations.
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
        "/interactions/clicks": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["interactions"],
                "summary": "Handle a category button click",
                "parameters": [
                    {"description": "Click", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/controllers.ClickRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "400": {"description": "bad_request", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "401": {"description": "unauthorized", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "403": {"description": "forbidden", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "409": {"description": "category_full", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "410": {"description": "stale_interaction", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "503": {"description": "not_ready", "schema": {"$ref": "#/definitions/helpers.APIResponse"}}
                }
            }
        },
        "/guilds/{guildID}/events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "List a guild's events",
                "parameters": [
                    {"type": "string", "description": "Guild ID", "name": "guildID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "401": {"description": "unauthorized", "schema": {"$ref": "#/definitions/helpers.APIResponse"}}
                }
            }
        },
        "/guilds/{guildID}/events/{eventID}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "Delete an event",
                "parameters": [
                    {"type": "string", "description": "Guild ID", "name": "guildID", "in": "path", "required": true},
                    {"type": "string", "description": "Event ID", "name": "eventID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "404": {"description": "not_found", "schema": {"$ref": "#/definitions/helpers.APIResponse"}}
                }
            }
        },
        "/guilds/{guildID}/setup": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["setup"],
                "summary": "Wait for the next setup prompt",
                "parameters": [
                    {"type": "string", "description": "Guild ID", "name": "guildID", "in": "path", "required": true},
                    {"type": "integer", "description": "Last seen seq", "name": "after", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "404": {"description": "not_found", "schema": {"$ref": "#/definitions/helpers.APIResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["setup"],
                "summary": "Start the event setup wizard",
                "parameters": [
                    {"type": "string", "description": "Guild ID", "name": "guildID", "in": "path", "required": true},
                    {"description": "Operator starting the wizard", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/controllers.StartSetupRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "409": {"description": "conflict", "schema": {"$ref": "#/definitions/helpers.APIResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["setup"],
                "summary": "Cancel the running setup wizard",
                "parameters": [
                    {"type": "string", "description": "Guild ID", "name": "guildID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "404": {"description": "not_found", "schema": {"$ref": "#/definitions/helpers.APIResponse"}}
                }
            }
        },
        "/guilds/{guildID}/setup/replies": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["setup"],
                "summary": "Answer the current setup prompt",
                "parameters": [
                    {"type": "string", "description": "Guild ID", "name": "guildID", "in": "path", "required": true},
                    {"description": "Answer", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/controllers.SetupReplyRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "403": {"description": "forbidden", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "409": {"description": "conflict", "schema": {"$ref": "#/definitions/helpers.APIResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/helpers.APIResponse"}}}
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/helpers.APIResponse"}},
                    "503": {"description": "not_ready", "schema": {"$ref": "#/definitions/helpers.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "controllers.ClickRequest": {
            "type": "object",
            "properties": {
                "message_id": {"type": "string"},
                "custom_id": {"type": "string"},
                "guild_id": {"type": "string"},
                "channel_id": {"type": "string"},
                "user_id": {"type": "string"},
                "roles": {"type": "array", "items": {"type": "string"}}
            }
        },
        "controllers.StartSetupRequest": {
            "type": "object",
            "properties": {"author_id": {"type": "string"}}
        },
        "controllers.SetupReplyRequest": {
            "type": "object",
            "properties": {
                "seq": {"type": "integer"},
                "user_id": {"type": "string"},
                "text": {"type": "string"},
                "values": {"type": "array", "items": {"type": "string"}},
                "confirmed": {"type": "boolean"},
                "skipped": {"type": "boolean"}
            }
        },
        "helpers.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "helpers.APIResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"$ref": "#/definitions/helpers.APIError"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "signupboard API",
	Description:      "Sign-up board state engine behind a chat interaction gateway.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
