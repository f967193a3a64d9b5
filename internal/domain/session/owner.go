package session

import "github.com/google/uuid"

// Owner is either Account or Guest. The interface is sealed, so a type switch
// over those two cases is exhaustive.
type Owner interface {
	isOwner()
}

type Account struct {
	ID uuid.UUID
}

type Guest struct{}

func (Account) isOwner() {}
func (Guest) isOwner()   {}

// OwnerID returns the account id and true for Account, uuid.Nil and false for Guest.
func OwnerID(o Owner) (uuid.UUID, bool) {
	switch v := o.(type) {
	case Account:
		return v.ID, true
	case Guest:
		return uuid.Nil, false
	default:
		panic("session: unknown owner type")
	}
}

// OwnerFrom is the inverse of OwnerID, used when scanning nullable columns.
func OwnerFrom(id *uuid.UUID) Owner {
	if id == nil {
		return Guest{}
	}
	return Account{ID: *id}
}
