package errors

// Generic
const (
	ErrInternalServer = "ERR_INTERNAL_SERVER"
	ErrInvalidParam   = "ERR_INVALID_PARAM"
	ErrNotFound       = "ERR_NOT_FOUND"
	ErrTooManyRequest = "ERR_TOO_MANY_REQUESTS"
)

// Share access
const (
	ErrInvalidToken         = "ERR_INVALID_TOKEN"
	ErrShareNotFound        = "ERR_SHARE_NOT_FOUND"
	ErrInvalidVerifyCode    = "ERR_INVALID_VERIFY_CODE"
	ErrShareFileUnavailable = "ERR_SHARE_FILE_UNAVAILABLE"
)

// Transfer
const (
	ErrUnauthorized     = "ERR_UNAUTHORIZED"
	ErrLoginFailure     = "ERR_LOGIN_FAILURE"
	ErrNotMultipart     = "ERR_NOT_MULTIPART"
	ErrEmptyUpload      = "ERR_EMPTY_UPLOAD"
	ErrPayloadTooLarge  = "ERR_PAYLOAD_TOO_LARGE"
	ErrUploadCancelled  = "ERR_UPLOAD_CANCELLED"
	ErrUploadFailed     = "ERR_UPLOAD_FAILED"
	ErrFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrDownloadFailed   = "ERR_DOWNLOAD_FAILED"
	ErrStorageFailure   = "ERR_STORAGE_FAILURE"
	ErrCertificateFault = "ERR_CERTIFICATE_FAILURE"
)
