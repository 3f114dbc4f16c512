package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	PetID        string
	SessionID    *string
	ActivityType *ActivityType
	Limit        int
	Offset       int
}
