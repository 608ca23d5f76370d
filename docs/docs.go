// Package docs registers the OpenAPI documents for both services with swag.
// They are maintained by hand in the swag output layout and must follow the
// handler annotations when routes change.
package docs

import "github.com/swaggo/swag"

const ledgerTemplate = `{
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
        "/accounts": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Create an account. Learner accounts receive the welcome grant.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "Open account",
                "parameters": [{"description": "Account request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.OpenAccountRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Account"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/accounts/verify": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "Verify credential",
                "parameters": [{"description": "Credential", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.VerifyRequest"}}],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/accounts/{accountNumber}/balance": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "Get balance",
                "parameters": [{"type": "string", "description": "Account number", "name": "accountNumber", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.BalanceResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/accounts/{accountNumber}/transactions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "Transaction history",
                "parameters": [
                    {"type": "string", "description": "Account number", "name": "accountNumber", "in": "path", "required": true},
                    {"type": "integer", "description": "Page size", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Page offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Transaction"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/settlements": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Settlements"],
                "summary": "List settlements",
                "parameters": [
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "kind", "in": "query"},
                    {"type": "string", "name": "account", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Transaction"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/settlements/course-reward": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Settlements"],
                "summary": "Open course reward",
                "parameters": [{"description": "Course reward", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CourseRewardRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.SettlementResponse"}},
                    "402": {"description": "Payment Required", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/settlements/enrollment-payment": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Settlements"],
                "summary": "Open enrollment payment",
                "parameters": [{"description": "Enrollment payment", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.EnrollmentPaymentRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.SettlementResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "402": {"description": "Payment Required", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/settlements/{transactionId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Settlements"],
                "summary": "Get settlement",
                "parameters": [{"type": "string", "name": "transactionId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Transaction"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/settlements/{transactionId}/approve": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Settlements"],
                "summary": "Approve settlement",
                "parameters": [{"type": "string", "name": "transactionId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Transaction"}},
                    "402": {"description": "Payment Required", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/settlements/{transactionId}/reject": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Settlements"],
                "summary": "Reject settlement",
                "parameters": [{"type": "string", "name": "transactionId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Transaction"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/operator/outbox": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Operator"],
                "summary": "List outbox messages",
                "parameters": [
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.OutboxMessage"}}}
                }
            }
        },
        "/operator/outbox/{id}/retry": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Operator"],
                "summary": "Retry outbox message",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.OutboxMessage"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.OpenAccountRequest": {"type": "object", "properties": {"accountNumber": {"type": "string"}, "ownerName": {"type": "string"}, "role": {"type": "string"}, "secretCredential": {"type": "string"}}},
        "handlers.VerifyRequest": {"type": "object", "properties": {"accountNumber": {"type": "string"}, "secretCredential": {"type": "string"}}},
        "handlers.CourseRewardRequest": {"type": "object", "properties": {"courseId": {"type": "string"}, "instructorAccount": {"type": "string"}}},
        "handlers.EnrollmentPaymentRequest": {"type": "object", "properties": {"amount": {"type": "string"}, "enrollmentId": {"type": "string"}, "instructorAccount": {"type": "string"}, "learnerAccount": {"type": "string"}}},
        "handlers.SettlementResponse": {"type": "object", "properties": {"status": {"type": "string"}, "transactionId": {"type": "string"}}},
        "handlers.BalanceResponse": {"type": "object", "properties": {"accountNumber": {"type": "string"}, "balance": {"type": "string"}}},
        "models.Account": {"type": "object", "properties": {"accountNumber": {"type": "string"}, "balance": {"type": "string"}, "createdAt": {"type": "string"}, "id": {"type": "string"}, "ownerName": {"type": "string"}, "role": {"type": "string"}, "updatedAt": {"type": "string"}}},
        "models.Transaction": {"type": "object", "properties": {"amount": {"type": "string"}, "correlationId": {"type": "string"}, "createdAt": {"type": "string"}, "decidedAt": {"type": "string"}, "description": {"type": "string"}, "failureReason": {"type": "string"}, "fromAccount": {"type": "string"}, "id": {"type": "string"}, "kind": {"type": "string"}, "parentId": {"type": "string"}, "status": {"type": "string"}, "toAccount": {"type": "string"}, "updatedAt": {"type": "string"}}},
        "models.OutboxMessage": {"type": "object", "properties": {"action": {"type": "string"}, "attempts": {"type": "integer"}, "correlationId": {"type": "string"}, "createdAt": {"type": "string"}, "deliveredAt": {"type": "string"}, "id": {"type": "string"}, "kind": {"type": "string"}, "lastError": {"type": "string"}, "nextAttemptAt": {"type": "string"}, "status": {"type": "string"}, "transactionId": {"type": "string"}}},
        "models.ErrorResponse": {"type": "object", "properties": {"code": {"type": "string"}, "details": {"type": "object", "additionalProperties": {"type": "string"}}, "error": {"type": "string"}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

const commerceTemplate = `{
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
        "/courses": {
            "get": {
                "description": "Active courses by default. With instructorId, every course of that instructor including pending ones.",
                "produces": ["application/json"],
                "tags": ["Courses"],
                "summary": "List courses",
                "parameters": [
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "instructorId", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Course"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Store a pending course and open its creation reward with the ledger.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Courses"],
                "summary": "Create course",
                "parameters": [{"description": "Course", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateCourseRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Course"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "402": {"description": "Payment Required", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/courses/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Courses"],
                "summary": "Get course",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Course"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Delete a course whose funding was refused. Active courses are kept.",
                "tags": ["Callbacks"],
                "summary": "Compensate course",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/courses/{id}/activate": {
            "put": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Callbacks"],
                "summary": "Activate course",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Course"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/enrollments": {
            "get": {
                "description": "Newest first, each with its course. Unpaid enrollments stay listed until the ledger decides.",
                "produces": ["application/json"],
                "tags": ["Enrollments"],
                "summary": "List a learner's enrollments",
                "parameters": [
                    {"type": "string", "name": "learnerId", "in": "query", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Enrollment"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Store an unpaid enrollment and open the learner's payment with the ledger.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Enrollments"],
                "summary": "Enroll in course",
                "parameters": [{"description": "Enrollment", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.EnrollRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Enrollment"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "402": {"description": "Payment Required", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/enrollments/access": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Enrollments"],
                "summary": "Check course access",
                "parameters": [
                    {"type": "string", "name": "learnerId", "in": "query", "required": true},
                    {"type": "integer", "name": "courseId", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/commerce.Access"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/enrollments/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Enrollments"],
                "summary": "Get enrollment",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Enrollment"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Delete an unpaid enrollment. Paid enrollments are kept.",
                "tags": ["Callbacks"],
                "summary": "Compensate enrollment",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/enrollments/{id}/activate": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Callbacks"],
                "summary": "Activate enrollment",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Enrollment"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.CreateCourseRequest": {"type": "object", "properties": {"description": {"type": "string"}, "duration": {"type": "string"}, "instructorAccount": {"type": "string"}, "instructorId": {"type": "string"}, "level": {"type": "string"}, "price": {"type": "string"}, "title": {"type": "string"}}},
        "handlers.EnrollRequest": {"type": "object", "properties": {"courseId": {"type": "integer"}, "learnerAccount": {"type": "string"}, "learnerId": {"type": "string"}, "secretCredential": {"type": "string"}}},
        "models.Course": {"type": "object", "properties": {"correlationTransactionId": {"type": "string"}, "createdAt": {"type": "string"}, "description": {"type": "string"}, "duration": {"type": "string"}, "enrolledCount": {"type": "integer"}, "fundingValidated": {"type": "boolean"}, "id": {"type": "integer"}, "instructorAccount": {"type": "string"}, "instructorId": {"type": "string"}, "level": {"type": "string"}, "price": {"type": "string"}, "status": {"type": "string"}, "title": {"type": "string"}, "updatedAt": {"type": "string"}}},
        "models.Enrollment": {"type": "object", "properties": {"correlationTransactionId": {"type": "string"}, "course": {"$ref": "#/definitions/models.Course"}, "courseId": {"type": "integer"}, "createdAt": {"type": "string"}, "deadline": {"type": "string"}, "id": {"type": "integer"}, "learnerAccount": {"type": "string"}, "learnerId": {"type": "string"}, "paymentValidated": {"type": "boolean"}, "updatedAt": {"type": "string"}}},
        "commerce.Access": {"type": "object", "properties": {"daysRemaining": {"type": "integer"}, "deadline": {"type": "string"}, "expired": {"type": "boolean"}, "hasAccess": {"type": "boolean"}, "paymentValidated": {"type": "boolean"}}},
        "models.ErrorResponse": {"type": "object", "properties": {"code": {"type": "string"}, "details": {"type": "object", "additionalProperties": {"type": "string"}}, "error": {"type": "string"}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// LedgerInfo holds exported Swagger Info so clients can modify it
var LedgerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:5002",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "EduLearn Ledger API",
	Description:      "Double-entry ledger settling course rewards and enrollment payments",
	InfoInstanceName: "ledger",
	SwaggerTemplate:  ledgerTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

// CommerceInfo holds exported Swagger Info so clients can modify it
var CommerceInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:5000",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "EduLearn Commerce API",
	Description:      "Courses and enrollments funded through the ledger",
	InfoInstanceName: "commerce",
	SwaggerTemplate:  commerceTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(LedgerInfo.InstanceName(), LedgerInfo)
	swag.Register(CommerceInfo.InstanceName(), CommerceInfo)
}
