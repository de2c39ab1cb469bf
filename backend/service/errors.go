package service

import (
	"net/http"

	apperrors "quickshare/backend/common/errors"
)

// Client-facing failures. Callers add context with fmt.Errorf("%w: ...")
// so errors.Is and common.RespAppError keep working.
var (
	ErrInvalidShareLink     = apperrors.NotFound(apperrors.ErrInvalidToken, "Invalid sharing link.")
	ErrIncorrectVerifyCode  = apperrors.Unauthorized(apperrors.ErrInvalidVerifyCode, "Incorrect verification code.")
	ErrShareFileUnavailable = apperrors.New(apperrors.ErrShareFileUnavailable, http.StatusInternalServerError, "File download failed.")
	ErrShareNotFound        = apperrors.NotFound(apperrors.ErrShareNotFound, "Share does not exist.")

	ErrLoginFailure    = apperrors.Unauthorized(apperrors.ErrLoginFailure, "Login failure.")
	ErrNotMultipart    = apperrors.BadRequest(apperrors.ErrNotMultipart, "Request content type must be multipart/form-data.")
	ErrEmptyUpload     = apperrors.BadRequest(apperrors.ErrEmptyUpload, "Uploaded file is empty.")
	ErrPayloadTooLarge = apperrors.New(apperrors.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "File upload failed: Total size exceeds the limit.")
	ErrUploadCancelled = apperrors.New(apperrors.ErrUploadCancelled, http.StatusInternalServerError, "Upload cancelled.")
	ErrUploadFailed    = apperrors.New(apperrors.ErrUploadFailed, http.StatusInternalServerError, "File upload failed.")
	ErrFileNotFound    = apperrors.NotFound(apperrors.ErrFileNotFound, "File does not exist.")
	ErrDownloadFailed  = apperrors.New(apperrors.ErrDownloadFailed, http.StatusInternalServerError, "File download failed.")
	ErrStorageFailure  = apperrors.New(apperrors.ErrStorageFailure, http.StatusInternalServerError, "Storage is unavailable.")
)
