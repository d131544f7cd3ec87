package validator

const (
	// Upper bound on the total uncompressed size of a standard-mode archive.
	MaxStandardCodeSize int64 = 10 << 20
	// Upper bound on the total uncompressed size of a project-mode archive.
	MaxProjectCodeSize int64 = 1 << 30
)

func ValidateStandardCodeSize(size int64) bool {
	return size >= 0 && size <= MaxStandardCodeSize
}

func ValidateProjectCodeSize(size int64) bool {
	return size >= 0 && size <= MaxProjectCodeSize
}
