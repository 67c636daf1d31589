// internal/app/features/imports/tabular/limits.go
package tabular

// Upload size and row limits for dataset imports.
const (
	MaxUploadSize = 20 << 20 // 20 MB
	MaxRows       = 200000
)
