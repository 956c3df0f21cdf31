package constants

const (
	HTTPCodeBadRequest          = 400
	HTTPCodeUnauthorized        = 401
	HTTPCodeForbidden           = 403
	HTTPCodeNotFound            = 404
	HTTPCodeConflict            = 409
	HTTPCodeUnprocessableEntity = 422
	HTTPCodeInternalServerError = 500
)
