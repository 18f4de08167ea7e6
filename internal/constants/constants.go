package constants

// Audit actions.
const (
	Create = "CREATE"
	Update = "UPDATE"
	Delete = "DELETE"
)
