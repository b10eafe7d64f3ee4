package pipeline

// User-facing messages for request and group failures.
const (
	MsgMissingFields      = "Missing groupId or type in request body."
	MsgInvalidType        = "Invalid recommendation type."
	MsgGroupNotFound      = "Group not found"
	MsgEmptyGroup         = "Group has no members"
	MsgNoValidUsers       = "No valid users found in group."
	MsgNoInterests        = "No interests found for group."
	MsgNoEntities         = "No taste-graph entities found for interests."
	invalidCategoryPrefix = "Invalid category: "
)

// ValidationError is a malformed or unsupported request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError means the group or its data cannot support a recommendation.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}
