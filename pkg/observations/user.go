package observations

import (
	"strings"
	"time"

	"github.com/biorecords/biorecords/pkg/errors"
)

// User is an observer, reporter or record author.
type User struct {
	ID        int64     `json:"id" yaml:"id,omitempty"`
	Username  string    `json:"username" yaml:"username"`
	Name      string    `json:"name" yaml:"name,omitempty"`
	Nickname  string    `json:"nickname" yaml:"nickname,omitempty"`
	Aliases   string    `json:"aliases" yaml:"aliases,omitempty"`
	Role      string    `json:"role" yaml:"role,omitempty"`
	Phone     string    `json:"phone" yaml:"phone,omitempty"`
	Email     string    `json:"email" yaml:"email,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Validate requires a username.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.NewValidationError("username", u.Username, "is required")
	}
	return nil
}

// String returns the display name.
func (u *User) String() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// AliasList splits the comma separated aliases.
func (u *User) AliasList() []string {
	var out []string
	for _, a := range strings.Split(u.Aliases, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Matches reports whether name equals the username, name, nickname or an
// alias, ignoring case and surrounding space.
func (u *User) Matches(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, c := range append([]string{u.Username, u.Name, u.Nickname}, u.AliasList()...) {
		if strings.EqualFold(strings.TrimSpace(c), name) {
			return true
		}
	}
	return false
}
