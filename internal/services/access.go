package services

import "github.com/owenstack/chat/internal/domain"

// Access rules. Each predicate is a pure function of the actor and the
// resource so that every service answers the same question the same way.

// canReadRoom: members read a room, its members and its messages.
func canReadRoom(actorID string, isMember bool) bool {
	return actorID != "" && isMember
}

// canModifyRoom: only the creator changes room metadata.
func canModifyRoom(actorID string, room *domain.Room) bool {
	return actorID != "" && room != nil && room.CreatedBy == actorID
}

// canModifyUser: users edit only their own profile.
func canModifyUser(actorID, targetID string) bool {
	return actorID != "" && actorID == targetID
}

// canReadCopy: a delivered copy is private to its recipient.
func canReadCopy(actorID string, c domain.DeliveredCopy) bool {
	return actorID != "" && c.UserID == actorID
}
