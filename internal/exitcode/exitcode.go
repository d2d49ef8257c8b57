package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	CatalogError    = 4
	EvaluateError   = 5
	StoreError      = 6
	ServeError      = 7
)
