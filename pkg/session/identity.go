package session

import (
	"strings"
	"time"

	"github.com/edumall/edumall/pkg/identitysdk"
)

// Identity is the signed-in account as the storefront sees it. Its JSON form
// is also the legacy cached user object.
type Identity struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Mobile     string    `json:"mobile"`
	Email      string    `json:"email,omitempty"`
	IsVerified bool      `json:"isVerified"`
	JoinDate   time.Time `json:"joinDate,omitzero"`
}

// FirstName returns the first word of Name, used for the header greeting.
func (i Identity) FirstName() string {
	first, _, _ := strings.Cut(i.Name, " ")
	return first
}

// IdentityFromUser maps an identity service profile.
func IdentityFromUser(u identitysdk.User) Identity {
	return Identity{
		ID:         u.ID,
		Name:       strings.TrimSpace(u.FirstName + " " + u.LastName),
		Mobile:     u.Phone,
		Email:      u.Email,
		IsVerified: u.IsPhoneVerified,
		JoinDate:   u.JoinedAt(),
	}
}

// Profile is the extra data supplied when registering a new account.
type Profile struct {
	FirstName string
	LastName  string
	Email     string
}

// Snapshot is a consistent view of the store for readers and subscribers.
type Snapshot struct {
	Identity      *Identity `json:"identity,omitempty"`
	Authenticated bool      `json:"authenticated"`
	Loading       bool      `json:"loading"`
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
