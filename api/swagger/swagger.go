package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Job Coach API",
        "description": "Coaching backend with capacity-bounded user to admin assignment",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Assignment",
            "description": "Auto-assignment engine and overflow queue"
        },
        {
            "name": "Users",
            "description": "User lifecycle events"
        },
        {
            "name": "Admins",
            "description": "Admin removal"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "A dependency is unreachable"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": [
                    "text/plain"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/v1/me/personal-details": {
            "put": {
                "tags": [
                    "Users"
                ],
                "summary": "Submit own personal details",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/PersonalDetailsRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/admin/users/{id}/complete": {
            "post": {
                "tags": [
                    "Users"
                ],
                "summary": "Mark a coached user as completed",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/admin/users/{id}/applications": {
            "post": {
                "tags": [
                    "Users"
                ],
                "summary": "Record a job application for a user",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateApplicationRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/super-admin/users/{id}/status": {
            "put": {
                "tags": [
                    "Users"
                ],
                "summary": "Change a user's status",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateUserStatusRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/super-admin/users/{id}/admin": {
            "delete": {
                "tags": [
                    "Assignment"
                ],
                "summary": "Unassign a user from their admin",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/super-admin/admins/{id}": {
            "delete": {
                "tags": [
                    "Admins"
                ],
                "summary": "Delete an admin and re-place their users",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/super-admin/assignment/auto-assign": {
            "post": {
                "tags": [
                    "Assignment"
                ],
                "summary": "Run auto-assignment",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/AutoAssignRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/super-admin/assignment/process-queue": {
            "post": {
                "tags": [
                    "Assignment"
                ],
                "summary": "Drain the assignment queue",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/super-admin/assignment/rebalance": {
            "post": {
                "tags": [
                    "Assignment"
                ],
                "summary": "Even out admin workloads",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/super-admin/assignment/assign-users": {
            "post": {
                "tags": [
                    "Assignment"
                ],
                "summary": "Assign users to an admin",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AssignUsersRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/super-admin/assignment/stats": {
            "get": {
                "tags": [
                    "Assignment"
                ],
                "summary": "Assignment statistics",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/super-admin/assignment/queue": {
            "get": {
                "tags": [
                    "Assignment"
                ],
                "summary": "List the assignment queue",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/super-admin/assignment/config": {
            "get": {
                "tags": [
                    "Assignment"
                ],
                "summary": "Current assignment config",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "put": {
                "tags": [
                    "Assignment"
                ],
                "summary": "Update assignment config",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateAssignmentConfigRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/super-admin/assignment/workload/export": {
            "get": {
                "tags": [
                    "Assignment"
                ],
                "summary": "Download admin workloads",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "enum": [
                            "csv",
                            "pdf"
                        ]
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File",
                        "schema": {
                            "type": "file"
                        }
                    }
                },
                "produces": [
                    "text/csv",
                    "application/pdf"
                ]
            }
        }
    },
    "definitions": {
        "AutoAssignRequest": {
            "type": "object",
            "properties": {
                "source": {
                    "type": "string",
                    "enum": [
                        "manual",
                        "profile_submitted",
                        "status_change",
                        "admin_removed",
                        "scheduled"
                    ]
                }
            }
        },
        "UpdateAssignmentConfigRequest": {
            "type": "object",
            "properties": {
                "max_users_per_admin": {
                    "type": "integer"
                },
                "selection_policy": {
                    "type": "string",
                    "enum": [
                        "LOAD_BALANCING",
                        "ROUND_ROBIN"
                    ]
                },
                "queue_processing_enabled": {
                    "type": "boolean"
                }
            }
        },
        "AssignUsersRequest": {
            "type": "object",
            "properties": {
                "admin_id": {
                    "type": "string"
                },
                "user_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            },
            "required": [
                "admin_id",
                "user_ids"
            ]
        },
        "UpdateUserStatusRequest": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "enum": [
                        "ACTIVE",
                        "DISABLED"
                    ]
                }
            },
            "required": [
                "status"
            ]
        },
        "PersonalDetailsRequest": {
            "type": "object",
            "properties": {
                "full_name": {
                    "type": "string"
                },
                "personal_email": {
                    "type": "string"
                },
                "country_resident": {
                    "type": "string"
                },
                "work_authorization": {
                    "type": "string"
                },
                "salary_expectation": {
                    "type": "number"
                },
                "visa_sponsor": {
                    "type": "boolean"
                },
                "target_job_locations": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "interested_roles": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "interested_industries": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            },
            "required": [
                "full_name",
                "personal_email",
                "country_resident",
                "work_authorization",
                "salary_expectation",
                "visa_sponsor",
                "target_job_locations",
                "interested_roles",
                "interested_industries"
            ]
        },
        "CreateApplicationRequest": {
            "type": "object",
            "properties": {
                "company_name": {
                    "type": "string"
                },
                "role": {
                    "type": "string"
                },
                "application_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "APPLIED",
                        "INTERVIEWING",
                        "OFFERED",
                        "REJECTED"
                    ]
                },
                "job_link": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                }
            },
            "required": [
                "company_name",
                "role"
            ]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
