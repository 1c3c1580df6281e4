// Package swagger registers the API documentation served at /swagger.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/troupes": {
            "post": {"tags": ["troupe"], "summary": "Create Troupe"}
        },
        "/troupes/{id}": {
            "get": {"tags": ["troupe"], "summary": "Get Troupe"}
        },
        "/troupes/{id}/properties": {
            "post": {"tags": ["troupe"], "summary": "Add Property"}
        },
        "/troupes/{id}/properties/{name}": {
            "patch": {"tags": ["troupe"], "summary": "Patch Property"},
            "delete": {"tags": ["troupe"], "summary": "Remove Property"}
        },
        "/troupes/{id}/point-types": {
            "post": {"tags": ["troupe"], "summary": "Add Point Type"}
        },
        "/troupes/{id}/point-types/{name}": {
            "patch": {"tags": ["troupe"], "summary": "Update Point Window"},
            "delete": {"tags": ["troupe"], "summary": "Remove Point Type"}
        },
        "/troupes/{id}/matchers": {
            "post": {"tags": ["troupe"], "summary": "Add Matcher"},
            "delete": {"tags": ["troupe"], "summary": "Remove Matcher"}
        },
        "/troupes/{id}/event-types": {
            "post": {"tags": ["troupe"], "summary": "Create Event Type"}
        },
        "/troupes/{id}/event-types/{tid}": {
            "delete": {"tags": ["troupe"], "summary": "Delete Event Type"}
        },
        "/troupes/{id}/event-types/{tid}/value": {
            "patch": {"tags": ["troupe"], "summary": "Set Event Type Value"}
        },
        "/troupes/{id}/event-types/{tid}/folders": {
            "post": {"tags": ["troupe"], "summary": "Add Folder"},
            "delete": {"tags": ["troupe"], "summary": "Remove Folder"}
        },
        "/troupes/{id}/events/{eid}/value": {
            "patch": {"tags": ["troupe"], "summary": "Set Event Value"}
        },
        "/troupes/{id}/events/{eid}/type": {
            "patch": {"tags": ["troupe"], "summary": "Assign Event Type"}
        },
        "/troupes/{id}/origin-event": {
            "patch": {"tags": ["troupe"], "summary": "Set Origin Event"}
        },
        "/troupes/{id}/sync": {
            "post": {"tags": ["sync"], "summary": "Run Sync"}
        },
        "/troupes/{id}/sync/lock": {
            "delete": {"tags": ["sync"], "summary": "Force Unlock"}
        },
        "/troupes/{id}/dashboard": {
            "get": {"tags": ["sync"], "summary": "Get Dashboard"}
        },
        "/troupes/{id}/report": {
            "delete": {"tags": ["report"], "summary": "Delete Report"}
        },
        "/troupes/{id}/report/validate": {
            "get": {"tags": ["report"], "summary": "Validate Report"}
        },
        "/troupes/{id}/report/rebuild": {
            "post": {"tags": ["report"], "summary": "Rebuild Report"}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Rollcall API",
	Description:      "API for membership ledger synchronization.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
