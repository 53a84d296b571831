package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SIGEA API",
        "description": "Sistema de gestión de evaluaciones académicas: notas, esquemas de evaluación y promedios finales",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
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
        {"name": "Auth", "description": "Authentication and session management"},
        {"name": "Catalog", "description": "Courses and enrollments"},
        {"name": "Schemes", "description": "Evaluation scheme configuration"},
        {"name": "Grades", "description": "Notas, final averages and structure reports"},
        {"name": "Reports", "description": "Course gradebook exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate a user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke the current refresh token",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/password": {
            "put": {
                "tags": ["Auth"],
                "summary": "Change the current user's password",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Return the authenticated identity",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List courses",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "cycle_id", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Catalog"],
                "summary": "Register a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Catalog"],
                "summary": "Get a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Catalog"],
                "summary": "Update a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CourseRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/enrollments": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List active enrollments of a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments": {
            "post": {
                "tags": ["Catalog"],
                "summary": "Enroll a student into a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled"}
                }
            }
        },
        "/enrollments/{id}": {
            "delete": {
                "tags": ["Catalog"],
                "summary": "Withdraw an enrollment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/grade-schemes": {
            "get": {
                "tags": ["Schemes"],
                "summary": "Get the grade scheme of a course in a cycle",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "courseId", "in": "query", "required": true, "type": "string"},
                    {"name": "cycleId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No scheme registered"}
                }
            },
            "post": {
                "tags": ["Schemes"],
                "summary": "Register a grade scheme",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GradeSchemeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid weights"}
                }
            }
        },
        "/grade-schemes/{id}": {
            "put": {
                "tags": ["Schemes"],
                "summary": "Replace the categories of a draft scheme",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GradeSchemeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Scheme finalized"}
                }
            }
        },
        "/grade-schemes/{id}/finalize": {
            "post": {
                "tags": ["Schemes"],
                "summary": "Finalize a scheme, locking its weights",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades": {
            "get": {
                "tags": ["Grades"],
                "summary": "List graded items",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "course_id", "in": "query", "type": "string"},
                    {"name": "categoria", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Grades"],
                "summary": "Record a nota",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateGradeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Invalid score or unknown category"}
                }
            }
        },
        "/grades/{id}": {
            "put": {
                "tags": ["Grades"],
                "summary": "Correct a nota",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateGradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Grades"],
                "summary": "Delete a nota",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "motivo", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/grades/{id}/history": {
            "get": {
                "tags": ["Grades"],
                "summary": "List the historial of a nota",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}/enrollments": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List a student's enrollments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{studentId}/courses/{courseId}/final-grade": {
            "get": {
                "tags": ["Grades"],
                "summary": "Compute the final weighted average for a student in a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/FinalGradeResult"}}
                }
            }
        },
        "/students/{studentId}/courses/{courseId}/structure": {
            "get": {
                "tags": ["Grades"],
                "summary": "Report gradebook completeness per category",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/StructureReport"}}
                }
            }
        },
        "/reports/courses/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Course gradebook report",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            },
            "required": ["refresh_token"]
        },
        "CourseRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "credits": {"type": "integer"},
                "weekly_hours": {"type": "integer"},
                "cycle_id": {"type": "string"},
                "teacher_id": {"type": "string"}
            },
            "required": ["code", "name", "credits", "weekly_hours", "cycle_id", "teacher_id"]
        },
        "EnrollRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "cycle_id": {"type": "string"}
            },
            "required": ["student_id", "course_id", "cycle_id"]
        },
        "GradeSchemeRequest": {
            "type": "object",
            "properties": {
                "course_id": {"type": "string"},
                "cycle_id": {"type": "string"},
                "categories": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/SchemeCategoryRequest"}
                }
            },
            "required": ["course_id", "cycle_id", "categories"]
        },
        "SchemeCategoryRequest": {
            "type": "object",
            "properties": {
                "categoria": {"type": "string"},
                "peso": {"type": "number"},
                "esperadas": {"type": "integer"}
            },
            "required": ["categoria", "peso", "esperadas"]
        },
        "CreateGradeRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "categoria": {"type": "string"},
                "nota": {"type": "number"},
                "fecha_evaluacion": {"type": "string"},
                "observaciones": {"type": "string"}
            },
            "required": ["student_id", "course_id", "categoria", "nota", "fecha_evaluacion"]
        },
        "UpdateGradeRequest": {
            "type": "object",
            "properties": {
                "nota": {"type": "number"},
                "fecha_evaluacion": {"type": "string"},
                "observaciones": {"type": "string"},
                "motivo_cambio": {"type": "string"}
            },
            "required": ["nota", "motivo_cambio"]
        },
        "FinalGradeResult": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "promedio_final": {"type": "number"},
                "estado": {"type": "string", "enum": ["APROBADO", "DESAPROBADO", "SIN_NOTAS"]},
                "detalle": {
                    "type": "object",
                    "properties": {
                        "promedios_categoria": {"type": "object"},
                        "notas_por_categoria": {"type": "object"}
                    }
                }
            }
        },
        "StructureReport": {
            "type": "object",
            "properties": {
                "categorias": {"type": "object"},
                "estructura_completa": {"type": "boolean"}
            }
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
