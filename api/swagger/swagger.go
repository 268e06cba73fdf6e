package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Madrasati API",
        "description": "School management, grade computation and realtime quiz matches",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Access-code login and account issuing"},
        {"name": "School", "description": "Settings, classes, subjects and rosters"},
        {"name": "Grades", "description": "Grade cells and computed result sheets"},
        {"name": "Questions", "description": "Quiz question bank"},
        {"name": "Matches", "description": "Realtime quiz matches and leaderboards"},
        {"name": "Notifications", "description": "Stage-scoped announcements"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate with an access code",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/accounts": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Issue a teacher or student access code",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IssueAccountRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/school/settings": {
            "get": {
                "tags": ["School"],
                "summary": "Get school settings",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["School"],
                "summary": "Update school settings",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SettingsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/school/classes": {
            "get": {
                "tags": ["School"],
                "summary": "List classes",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["School"],
                "summary": "Create class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateClassRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/school/classes/{id}": {
            "get": {
                "tags": ["School"],
                "summary": "Get class with subjects",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["School"],
                "summary": "Delete class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/school/classes/{id}/subjects": {
            "post": {
                "tags": ["School"],
                "summary": "Add subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSubjectRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/school/classes/{id}/subjects/{subjectId}": {
            "delete": {
                "tags": ["School"],
                "summary": "Remove subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "subjectId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/school/students/{id}": {
            "put": {
                "tags": ["School"],
                "summary": "Update roster entry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["School"],
                "summary": "Remove roster entry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/school/classes/{id}/students": {
            "get": {
                "tags": ["School"],
                "summary": "List class roster",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["School"],
                "summary": "Add student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/grades/{subjectId}": {
            "put": {
                "tags": ["Grades"],
                "summary": "Record grade cells",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "subjectId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubjectGrade"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/students/{id}/sheet": {
            "get": {
                "tags": ["Grades"],
                "summary": "Student result sheet",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}/sheets": {
            "get": {
                "tags": ["Grades"],
                "summary": "Class result sheets",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/questions": {
            "get": {
                "tags": ["Questions"],
                "summary": "List bank questions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "grade", "in": "query", "type": "string"},
                    {"name": "subject", "in": "query", "type": "string"},
                    {"name": "chapter", "in": "query", "type": "string"},
                    {"name": "author", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Questions"],
                "summary": "Author a question",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateQuestionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/questions/{id}": {
            "put": {
                "tags": ["Questions"],
                "summary": "Replace a question",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateQuestionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Questions"],
                "summary": "Delete a question",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/matches": {
            "post": {
                "tags": ["Matches"],
                "summary": "Open a match",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateMatchRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/matches/{id}": {
            "get": {
                "tags": ["Matches"],
                "summary": "Read the match state",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/matches/{id}/join": {
            "post": {
                "tags": ["Matches"],
                "summary": "Join a match",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/JoinMatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/matches/{id}/question": {
            "post": {
                "tags": ["Matches"],
                "summary": "Draw a question for a cell",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DrawQuestionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/matches/{id}/answer": {
            "post": {
                "tags": ["Matches"],
                "summary": "Answer the bound question",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnswerRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/matches/{id}/chat": {
            "post": {
                "tags": ["Matches"],
                "summary": "Post a chat message",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/matches/{id}/forfeit": {
            "post": {
                "tags": ["Matches"],
                "summary": "Forfeit the match",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/matches/{id}/events": {
            "get": {
                "tags": ["Matches"],
                "summary": "Stream match state updates",
                "description": "Server-sent events stream of the match document",
                "security": [{"BearerAuth": []}],
                "produces": ["text/event-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/challenges": {
            "post": {
                "tags": ["Matches"],
                "summary": "Challenge a named opponent",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateChallengeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}": {
            "get": {
                "tags": ["Matches"],
                "summary": "Read a challenge",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/accept": {
            "post": {
                "tags": ["Matches"],
                "summary": "Accept a challenge",
                "description": "Opens the match with the challenger hosting",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/decline": {
            "post": {
                "tags": ["Matches"],
                "summary": "Decline a challenge",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaderboard": {
            "get": {
                "tags": ["Matches"],
                "summary": "Read a leaderboard",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "grade", "in": "query", "type": "string"},
                    {"name": "subject", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List announcements",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "stage", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Notifications"],
                "summary": "Broadcast an announcement",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BroadcastRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "access_code": {"type": "string"}
            },
            "required": ["access_code"]
        },
        "IssueAccountRequest": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "enum": ["teacher", "student"]},
                "name": {"type": "string"},
                "student_id": {"type": "string"},
                "class_id": {"type": "string"},
                "stage": {"type": "string"},
                "section": {"type": "string"}
            },
            "required": ["role", "name"]
        },
        "SettingsRequest": {
            "type": "object",
            "properties": {
                "school_name": {"type": "string"},
                "principal_name": {"type": "string"},
                "academic_year": {"type": "string"},
                "directorate": {"type": "string"},
                "school_level": {"type": "string"},
                "decision_points": {"type": "integer"},
                "supplementary_subjects_count": {"type": "integer"}
            },
            "required": ["school_name", "academic_year", "school_level"]
        },
        "CreateClassRequest": {
            "type": "object",
            "properties": {
                "stage": {"type": "string"},
                "section": {"type": "string"}
            },
            "required": ["stage"]
        },
        "CreateSubjectRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"}
            },
            "required": ["name"]
        },
        "StudentRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "registration_id": {"type": "string"},
                "exam_id": {"type": "string"},
                "birth_date": {"type": "string"},
                "mother_name": {"type": "string"}
            },
            "required": ["name"]
        },
        "SubjectGrade": {
            "type": "object",
            "properties": {
                "october": {"type": "number"},
                "november": {"type": "number"},
                "december": {"type": "number"},
                "january": {"type": "number"},
                "february": {"type": "number"},
                "march": {"type": "number"},
                "april": {"type": "number"},
                "first_term": {"type": "number"},
                "mid_year": {"type": "number"},
                "second_term": {"type": "number"},
                "final_exam_1st": {"type": "number"},
                "final_exam_2nd": {"type": "number"}
            }
        },
        "CreateQuestionRequest": {
            "type": "object",
            "properties": {
                "grade": {"type": "string"},
                "subject": {"type": "string"},
                "chapter": {"type": "string"},
                "question_text": {"type": "string"},
                "options": {"type": "array", "items": {"type": "string"}},
                "correct_option_index": {"type": "integer"}
            },
            "required": ["grade", "subject", "question_text"]
        },
        "CreateMatchRequest": {
            "type": "object",
            "properties": {
                "grade": {"type": "string"},
                "subject": {"type": "string"},
                "symbol": {"type": "string"},
                "settings": {"type": "object"},
                "single_player": {"type": "boolean"}
            },
            "required": ["grade", "subject", "symbol"]
        },
        "JoinMatchRequest": {
            "type": "object",
            "properties": {
                "symbol": {"type": "string"}
            },
            "required": ["symbol"]
        },
        "CreateChallengeRequest": {
            "type": "object",
            "properties": {
                "target_id": {"type": "string"},
                "grade": {"type": "string"},
                "subject": {"type": "string"}
            },
            "required": ["target_id", "grade", "subject"]
        },
        "DrawQuestionRequest": {
            "type": "object",
            "properties": {
                "cell": {"type": "integer"}
            },
            "required": ["cell"]
        },
        "AnswerRequest": {
            "type": "object",
            "properties": {
                "cell": {"type": "integer"},
                "option_index": {"type": "integer"}
            },
            "required": ["cell", "option_index"]
        },
        "ChatRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string"}
            },
            "required": ["text"]
        },
        "BroadcastRequest": {
            "type": "object",
            "properties": {
                "stage": {"type": "string"},
                "message": {"type": "string"}
            },
            "required": ["stage", "message"]
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
