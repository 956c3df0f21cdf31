package constants

// Log field name constants
const (
	LOG_REQUEST_ID = "request_id"
	LOG_METHOD     = "method"
	LOG_URI        = "uri"
	LOG_RESP_CODE  = "code"
	LOG_ERROR      = "error"
	LOG_ELAPSED    = "elapsed"
	LOG_ENTITY     = "entity"
	LOG_ID         = "id"
	LOG_TEMP_ID    = "temp_id"
	LOG_TABLE      = "table"
	LOG_DRIVER     = "driver"
	LOG_URL        = "url"
	LOG_OUTCOME    = "outcome"
	LOG_COUNT      = "count"
	LOG_USER_ID    = "user_id"
	LOG_STATE      = "state"
)
