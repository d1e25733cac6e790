// Package docs registers the OpenAPI description served at /swagger. Keep it
// in sync with the godoc annotations on the handlers (swag init -g
// internal/http/router.go -o internal/docs regenerates it).
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/me": {
            "get":   {"tags": ["Users"], "summary": "Get the current user", "operationId": "getMe", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.UserResponse"}}, "403": {"description": "Setup required", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}},
            "post":  {"tags": ["Users"], "summary": "Set up the current user", "operationId": "setupMe", "parameters": [{"in": "body", "name": "body", "schema": {"$ref": "#/definitions/handlers.SetupRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.UserResponse"}}, "400": {"description": "Invalid language", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}},
            "patch": {"tags": ["Users"], "summary": "Update the current user's profile", "operationId": "updateMe", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateProfileRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.UserResponse"}}, "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/users": {
            "get": {"tags": ["Users"], "summary": "Search public users", "operationId": "searchUsers", "parameters": [{"in": "query", "name": "query", "type": "string"}, {"in": "query", "name": "page", "type": "integer", "default": 1}, {"in": "query", "name": "page_size", "type": "integer", "default": 20, "maximum": 100}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListUsersResponse"}}}}
        },
        "/rooms": {
            "get":  {"tags": ["Rooms"], "summary": "List the caller's rooms", "operationId": "listRooms", "parameters": [{"in": "query", "name": "page", "type": "integer", "default": 1}, {"in": "query", "name": "page_size", "type": "integer", "default": 20, "maximum": 100}, {"in": "header", "name": "If-None-Match", "type": "string"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListRoomsResponse"}}, "304": {"description": "Not modified"}}},
            "post": {"tags": ["Rooms"], "summary": "Create a room", "operationId": "createRoom", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateRoomRequest"}}], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.RoomResponse"}}, "400": {"description": "Invalid members", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/rooms/{id}": {
            "get":   {"tags": ["Rooms"], "summary": "Get a room", "operationId": "getRoom", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RoomResponse"}}, "404": {"description": "Room not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}},
            "patch": {"tags": ["Rooms"], "summary": "Rename a room", "operationId": "renameRoom", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RenameRoomRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RoomResponse"}}, "403": {"description": "Not the creator", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/rooms/{id}/members": {
            "get": {"tags": ["Rooms"], "summary": "List room members", "operationId": "listRoomMembers", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MembersResponse"}}}}
        },
        "/rooms/{id}/messages": {
            "get":  {"tags": ["Messages"], "summary": "List messages in a room", "operationId": "listMessages", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}, {"in": "query", "name": "cursor", "type": "string"}, {"in": "query", "name": "limit", "type": "integer", "default": 50, "maximum": 200}, {"in": "header", "name": "If-None-Match", "type": "string"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListMessagesResponse"}}, "304": {"description": "Not modified"}, "400": {"description": "Invalid cursor", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}},
            "post": {"tags": ["Messages"], "summary": "Send a message to a room", "operationId": "postMessage", "parameters": [{"in": "header", "name": "Idempotency-Key", "type": "string"}, {"in": "path", "name": "id", "required": true, "type": "string"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PostMessageRequest"}}], "responses": {"201": {"description": "Stored message", "schema": {"$ref": "#/definitions/handlers.PostMessageResponse"}}, "200": {"description": "Replayed message", "schema": {"$ref": "#/definitions/handlers.PostMessageResponse"}}, "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}, "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/rooms/{id}/presence": {
            "get": {"tags": ["Realtime"], "summary": "List online members", "operationId": "getPresence", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.PresenceResponse"}}}}
        },
        "/rooms/{id}/presence/heartbeat": {
            "post": {"tags": ["Realtime"], "summary": "Mark the caller online", "operationId": "presenceHeartbeat", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"204": {"description": "Recorded"}}}
        },
        "/rooms/{id}/stream": {
            "get": {"tags": ["Realtime"], "summary": "Subscribe to room events", "operationId": "roomStream", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}, {"in": "query", "name": "access_token", "type": "string"}], "responses": {"101": {"description": "Switching protocols"}}}
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {"type": "object", "properties": {"request_id": {"type": "string"}, "code": {"type": "string", "example": "not_found"}, "message": {"type": "string"}}},
        "handlers.SetupRequest": {"type": "object", "properties": {"selected_language": {"type": "string", "example": "fr"}}},
        "handlers.UpdateProfileRequest": {"type": "object", "properties": {"name": {"type": "string"}, "account_type": {"type": "string", "enum": ["public", "private"]}, "avatar": {"type": "string"}, "selected_language": {"type": "string"}}},
        "handlers.UserResponse": {"type": "object", "properties": {"user": {"$ref": "#/definitions/domain.User"}}},
        "handlers.ListUsersResponse": {"type": "object", "properties": {"users": {"type": "array", "items": {"$ref": "#/definitions/domain.User"}}, "pagination": {"$ref": "#/definitions/handlers.Pagination"}}},
        "handlers.CreateRoomRequest": {"type": "object", "required": ["member_ids"], "properties": {"name": {"type": "string"}, "member_ids": {"type": "array", "items": {"type": "string"}}}},
        "handlers.RenameRoomRequest": {"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}},
        "handlers.RoomResponse": {"type": "object", "properties": {"room": {"$ref": "#/definitions/domain.Room"}}},
        "handlers.ListRoomsResponse": {"type": "object", "properties": {"rooms": {"type": "array", "items": {"$ref": "#/definitions/domain.Room"}}, "pagination": {"$ref": "#/definitions/handlers.Pagination"}}},
        "handlers.MembersResponse": {"type": "object", "properties": {"members": {"type": "object", "additionalProperties": {"$ref": "#/definitions/services.MemberProfile"}}}},
        "handlers.PostMessageRequest": {"type": "object", "required": ["text", "source_language"], "properties": {"text": {"type": "string"}, "source_language": {"type": "string", "example": "fr"}}},
        "handlers.PostMessageResponse": {"type": "object", "properties": {"message": {"$ref": "#/definitions/domain.Message"}}},
        "handlers.ListMessagesResponse": {"type": "object", "properties": {"messages": {"type": "array", "items": {"$ref": "#/definitions/services.MessageView"}}, "next_cursor": {"type": "string"}, "has_more": {"type": "boolean"}}},
        "handlers.PresenceResponse": {"type": "object", "properties": {"online": {"type": "array", "items": {"type": "string"}}}},
        "handlers.Pagination": {"type": "object", "properties": {"page": {"type": "integer"}, "page_size": {"type": "integer"}, "total": {"type": "integer"}, "total_pages": {"type": "integer"}, "has_next": {"type": "boolean"}}},
        "services.MemberProfile": {"type": "object", "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "avatar": {"type": "string"}, "selected_language": {"type": "string"}}},
        "services.MessageView": {"type": "object", "properties": {"id": {"type": "string"}, "room_id": {"type": "string"}, "author_id": {"type": "string"}, "text": {"type": "string"}, "original_text": {"type": "string"}, "source_language": {"type": "string"}, "language": {"type": "string"}, "translated": {"type": "boolean"}, "is_user_message": {"type": "boolean"}, "status": {"type": "string"}, "created_at": {"type": "string", "format": "date-time"}}},
        "domain.User": {"type": "object", "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "avatar": {"type": "string"}, "selected_language": {"type": "string"}, "account_type": {"type": "string"}, "created_at": {"type": "string", "format": "date-time"}, "updated_at": {"type": "string", "format": "date-time"}}},
        "domain.Room": {"type": "object", "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "type": {"type": "string", "enum": ["private", "group"]}, "last_activity_at": {"type": "string", "format": "date-time"}, "created_at": {"type": "string", "format": "date-time"}, "updated_at": {"type": "string", "format": "date-time"}}},
        "domain.Message": {"type": "object", "properties": {"id": {"type": "string"}, "room_id": {"type": "string"}, "author_id": {"type": "string"}, "text": {"type": "string"}, "source_language": {"type": "string"}, "status": {"type": "string", "enum": ["sent", "delivered", "failed"]}, "created_at": {"type": "string", "format": "date-time"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Translated Chat API",
	Description:      "Rooms, messages delivered in each reader's language, presence and realtime events.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
