package contextutils

// Identity keys shared by the session store, the gin context and tracing
const (
	UserLabelKey = "user_label"
	IsAdminKey   = "is_admin"
)
