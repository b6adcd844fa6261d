package auth

import "blog/internal/models"

// CanMutate reports whether uid may edit or delete r: only its owner can.
func CanMutate(uid int64, r models.Owned) bool {
	return uid != 0 && r != nil && r.OwnerID() == uid
}
