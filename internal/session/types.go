package session

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownRole = errors.New("unknown role")

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleRegular Role = "REGULAR"
)

func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(raw))); r {
	case RoleAdmin, RoleRegular:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

func (r Role) Is(other Role) bool {
	return strings.EqualFold(strings.TrimSpace(string(r)), string(other))
}

// Login is the session record the frontend keeps in the "user" cookie and
// the body returned by the backend's refresh endpoint.
type Login struct {
	ID      int64  `json:"id"`
	Status  *bool  `json:"status,omitempty"`
	Msg     string `json:"msg,omitempty"`
	Nombres string `json:"nombres"`
	Email   string `json:"email"`
	Token   string `json:"token"`
	Rol     Role   `json:"rol"`
}

func (l Login) HasToken() bool {
	return strings.TrimSpace(l.Token) != ""
}

func (l Login) IsAdmin() bool {
	return l.Rol.Is(RoleAdmin)
}

func (l Login) Rejected() bool {
	return l.Status != nil && !*l.Status
}

func (l Login) View() SessionView {
	return SessionView{
		ID:      l.ID,
		Nombres: l.Nombres,
		Email:   l.Email,
		Rol:     l.Rol,
	}
}

type SessionView struct {
	ID      int64  `json:"id"`
	Nombres string `json:"nombres"`
	Email   string `json:"email"`
	Rol     Role   `json:"rol"`
}

type ModuleUser struct {
	ID           int64         `json:"id"`
	Icon         string        `json:"icon"`
	Title        string        `json:"title"`
	Value        string        `json:"value"`
	Path         string        `json:"path"`
	Checked      bool          `json:"checked"`
	Expanded     bool          `json:"expanded"`
	ModuleLevels []ModuleLevel `json:"module_levels"`
}

type ModuleLevel struct {
	ID       int64  `json:"id"`
	ModuleID int64  `json:"module_id"`
	Title    string `json:"title"`
	Value    string `json:"value"`
	Enabled  bool   `json:"enabled"`
	Checked  bool   `json:"checked"`
	Path     string `json:"path"`
}

func (m ModuleUser) EnabledLevels() []ModuleLevel {
	out := make([]ModuleLevel, 0, len(m.ModuleLevels))
	for _, lvl := range m.ModuleLevels {
		if lvl.Enabled {
			out = append(out, lvl)
		}
	}
	return out
}
