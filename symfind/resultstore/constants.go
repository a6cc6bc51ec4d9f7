package resultstore

const (
	DefaultFile     = "results.json"
	filePermissions = 0644
)
