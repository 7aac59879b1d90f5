package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "UniCal API",
        "description": "University course calendar and notification service",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Account lifecycle and sessions"},
        {"name": "Users", "description": "Followed courses, schedule, feeds and calendar export"},
        {"name": "Catalogue", "description": "Public degrees, courses, lessons and campus data"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register a new account",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate and receive a token pair",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate the refresh token",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/auth/confirm/{token}": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Confirm an email address",
                "responses": {
                    "200": {"description": "Confirmed"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/auth/telegram": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Get a Telegram deep link for chat binding",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/users/{id}/courses": {
            "get": {
                "tags": ["Users"],
                "summary": "List followed courses",
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Not the authenticated user"}
                }
            },
            "post": {
                "tags": ["Users"],
                "summary": "Follow courses",
                "responses": {
                    "200": {"description": "Batch outcome"}
                }
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Unfollow courses",
                "responses": {
                    "200": {"description": "Batch outcome"}
                }
            }
        },
        "/users/{id}/feeds": {
            "get": {
                "tags": ["Users"],
                "summary": "List relevant feeds, newest first",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/users/{id}/feeds/read": {
            "post": {
                "tags": ["Users"],
                "summary": "Mark several feeds as read",
                "responses": {
                    "200": {"description": "Batch outcome"}
                }
            }
        },
        "/users/{id}/calendar.ics": {
            "get": {
                "tags": ["Users"],
                "summary": "Export the followed schedule as iCalendar",
                "produces": ["text/calendar"],
                "responses": {
                    "200": {"description": "ICS document"}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Catalogue"],
                "summary": "Search the course catalogue",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/lessons/{id}": {
            "put": {
                "tags": ["Catalogue"],
                "summary": "Reschedule a lesson (admin)",
                "responses": {
                    "200": {"description": "Reschedule outcome"},
                    "403": {"description": "Admin role required"}
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
