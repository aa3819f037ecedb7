// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"
	ErrorTimeout       = "TIMEOUT"

	// 草稿相关错误
	ErrorDraftNotFound     = "DRAFT_NOT_FOUND"
	ErrorDraftImportFailed = "DRAFT_IMPORT_FAILED"
	ErrorExportFailed      = "EXPORT_FAILED"
	ErrorStorageFailed     = "STORAGE_FAILED"

	// 格式化相关错误
	ErrorFormatFailed = "FORMAT_FAILED"

	// 生成相关错误
	ErrorHookNotFound          = "HOOK_NOT_FOUND"
	ErrorGenerationFailed      = "GENERATION_FAILED"
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"

	// 静态资源
	ErrorAssetFailed = "ASSET_FAILED"
)
